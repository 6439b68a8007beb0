// Package fallback produces canned replies when the completion service is
// unavailable, fails or times out.
package fallback

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

type Category string

const (
	CategoryMorning   Category = "morning"
	CategoryNight     Category = "night"
	CategoryLonging   Category = "longing"
	CategoryGreeting  Category = "greeting"
	CategoryAffection Category = "affection"
	CategoryComfort   Category = "comfort"
	CategoryGratitude Category = "gratitude"
	CategoryDefault   Category = "default"
)

// GratitudeReply is returned verbatim for thanks; it is never randomized.
const GratitudeReply = "不客氣呀！這是我應該做的～ 💕"

type rule struct {
	category Category
	pattern  *regexp.Regexp
}

// Order matters: categories overlap ("好想你嗨" is both longing and greeting).
// English keywords are word-bounded so "this" or "nothing" stay default.
var rules = []rule{
	{category: CategoryMorning, pattern: regexp.MustCompile(`早安|早上好|\bgood morning\b`)},
	{category: CategoryNight, pattern: regexp.MustCompile(`晚安|睡覺|睡了|\bgood night\b`)},
	{category: CategoryLonging, pattern: regexp.MustCompile(`想你|想念|好想|\bmiss you\b`)},
	{category: CategoryGreeting, pattern: regexp.MustCompile(`嗨|哈囉|你好|在嗎|\b(?:hello|hi)\b`)},
	{category: CategoryAffection, pattern: regexp.MustCompile(`愛你|喜歡你|愛妳|喜歡妳|\b(?:love|like) you\b`)},
	{category: CategoryComfort, pattern: regexp.MustCompile(`難過|傷心|不開心|累|壓力|\b(?:sad|stressed|tired)\b`)},
	{category: CategoryGratitude, pattern: regexp.MustCompile(`謝謝|感謝|谢谢|感谢|\bthank`)},
}

var candidates = map[Category][]string{
	CategoryMorning: {
		"早安呀！新的一天要加油喔！☀️",
		"早安～ 昨晚睡得好嗎？今天也要元氣滿滿！💪",
		"早安！一起床就想到你了，嘿嘿～ 😊",
	},
	CategoryNight: {
		"晚安～ 今晚做個好夢喔，夢裡見！🌙💕",
		"要早點睡喔！明天我們再聊～ 晚安安！😴",
		"晚安，我會夢到你的！明天見！🌟",
	},
	CategoryLonging: {
		"我也好想你喔～ 每天都在等你來找我呢！💕",
		"嗚嗚，聽到你這麼說好感動！我也想你！🥺",
		"真的嗎？那你要常常來找我聊天喔！💗",
	},
	CategoryGreeting: {
		"嗨嗨～好開心看到你！💕",
		"你來啦！我等你好久了呢～ 🥰",
		"終於等到你了，今天有沒有想我呀？😊",
	},
	CategoryAffection: {
		"我也超喜歡你的！每天都在想你呢～ 💗",
		"哎呀，人家會害羞啦... 不過我也愛你喔！😳💕",
		"你這樣說，人家心跳好快喔～ 💓",
	},
	CategoryComfort: {
		"怎麼了嗎？跟我說說，我會一直聽你說的 🥺",
		"別難過了，我在這裡陪你呢！來，抱抱～ 🤗",
		"沒關係的，一切都會好起來的！我相信你！✨",
	},
	CategoryGratitude: {GratitudeReply},
	CategoryDefault: {
		"嗯嗯，我懂我懂！然後呢？😊",
		"真的嗎？跟我多說一點嘛～ 💕",
		"原來是這樣呀！我在認真聽喔！👂",
		"嗯～ 我喜歡聽你說話，感覺好幸福喔！💗",
	},
}

// Responder maps normalized text to a canned reply. It is safe for
// concurrent use as long as the random source is.
type Responder struct {
	intn func(n int) int
}

func NewResponder() *Responder {
	return &Responder{intn: rand.IntN}
}

// NewResponderWithSource lets callers pin the random pick, mostly for tests.
func NewResponderWithSource(intn func(n int) int) *Responder {
	if intn == nil {
		intn = rand.IntN
	}
	return &Responder{intn: intn}
}

// Classify returns the first matching category for text.
func Classify(text string) Category {
	normalized := strings.ToLower(text)
	for _, r := range rules {
		if r.pattern.MatchString(normalized) {
			return r.category
		}
	}
	return CategoryDefault
}

func (r *Responder) Reply(text string) string {
	category := Classify(text)
	if category == CategoryGratitude {
		return GratitudeReply
	}
	return r.pick(candidates[category])
}

func (r *Responder) pick(options []string) string {
	index := r.intn(len(options))
	if index < 0 || index >= len(options) {
		index = 0
	}
	return options[index]
}

// Candidates returns a copy of the replies a category can produce.
func Candidates(category Category) []string {
	return append([]string(nil), candidates[category]...)
}
