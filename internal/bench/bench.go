// Package bench drives signed webhook traffic at a relay and reports
// acknowledgement latency.
package bench

import (
	"math"
	"sort"
	"sync"
	"time"
)

type ScenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type Report struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Target         string           `json:"target"`
	Results        []ScenarioResult `json:"results"`
	DrainMS        float64          `json:"drain_ms,omitempty"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

// RunScenario calls requestFn total times from concurrency goroutines.
func RunScenario(name string, total, concurrency int, requestFn func(index int) error) ScenarioResult {
	if total <= 0 {
		return ScenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()

	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{durationMS: Milliseconds(time.Since(requestStart))}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}
	sort.Float64s(durations)

	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	return ScenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         Percentile(durations, 0.50),
		P95MS:         Percentile(durations, 0.95),
		P99MS:         Percentile(durations, 0.99),
		MaxMS:         Percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

// Percentile expects values sorted ascending.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}

	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func Milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
