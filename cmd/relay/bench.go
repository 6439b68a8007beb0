package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iago/line-relay/internal/bench"
)

type discardDeliverer struct{}

func (discardDeliverer) Reply(context.Context, string, string) error { return nil }

func (discardDeliverer) Push(context.Context, string, string) error { return nil }

func newBenchCommand(a *app) *cobra.Command {
	var (
		targetURL   string
		secret      string
		total       int
		concurrency int
		users       int
		outputPath  string
		ackP95MS    float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Post signed webhook traffic and report acknowledgement latency",
		Long: `Without --url the relay is started in-process with deliveries discarded,
so the run measures ingestion, queueing and the fallback path only.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			target := targetURL
			var inProcess *relay
			if target == "" {
				cfg := a.cfg
				cfg.DatabaseURL = ""
				cfg.RedisAddr = ""
				cfg.AuthToken = ""
				if secret == "" {
					secret = cfg.LineChannelSecret
				}
				workerCtx, cancel := context.WithCancel(context.Background())
				defer cancel()

				r, err := buildRelay(ctx, workerCtx, cfg, discardDeliverer{}, zerolog.Nop())
				if err != nil {
					return err
				}
				defer r.Close()
				server := httptest.NewServer(r.handler)
				defer server.Close()
				target = server.URL
				inProcess = r
			}

			poster := bench.WebhookPoster{
				Client: &http.Client{Timeout: 10 * time.Second},
				URL:    target,
				Secret: secret,
				Users:  users,
			}
			ack := bench.RunScenario("webhook_ack", total, concurrency, func(index int) error {
				return poster.Post(ctx, index)
			})

			report := bench.Report{
				GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
				Target:         target,
				Results:        []bench.ScenarioResult{ack},
				SLOEvaluation: map[string]bool{
					fmt.Sprintf("webhook_ack_p95_le_%gms", ackP95MS): ack.P95MS <= ackP95MS,
				},
			}
			if inProcess != nil {
				report.Target = "in-process"
				drainStart := time.Now()
				waitCtx, cancel := context.WithTimeout(ctx, time.Minute)
				defer cancel()
				if err := inProcess.dispatcher.WaitIdle(waitCtx); err != nil {
					return fmt.Errorf("wait for queue drain: %w", err)
				}
				report.DrainMS = bench.Milliseconds(time.Since(drainStart))
			}

			encoded, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal benchmark report: %w", err)
			}
			if outputPath != "" {
				if err := os.WriteFile(outputPath, encoded, 0o644); err != nil {
					return fmt.Errorf("write output file: %w", err)
				}
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&targetURL, "url", "", "base URL of a running relay; empty starts one in-process")
	cmd.Flags().StringVar(&secret, "secret", "", "channel secret used to sign payloads")
	cmd.Flags().IntVar(&total, "total", 500, "total webhook requests")
	cmd.Flags().IntVar(&concurrency, "concurrency", 16, "concurrent senders")
	cmd.Flags().IntVar(&users, "users", 50, "distinct user ids")
	cmd.Flags().StringVar(&outputPath, "output", "", "optional path to persist the JSON report")
	cmd.Flags().Float64Var(&ackP95MS, "ack-p95-ms", 200, "p95 acknowledgement budget in milliseconds")
	return cmd
}
