package quality

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxLineTextRunes is the Messaging API limit for a single text message.
const MaxLineTextRunes = 5000

var ErrEmptyReply = errors.New("reply has no text")

// CleanReply normalizes a model reply before delivery. Blank output is an
// error so callers can treat it like any other failed completion.
func CleanReply(value string, maxRunes int) (string, error) {
	if maxRunes <= 0 || maxRunes > MaxLineTextRunes {
		maxRunes = MaxLineTextRunes
	}

	lines := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		normalized := normalizeText(line)
		if normalized == "" {
			if !blank && len(kept) > 0 {
				kept = append(kept, "")
			}
			blank = true
			continue
		}
		blank = false
		kept = append(kept, normalized)
	}

	cleaned := strings.TrimSpace(strings.Join(kept, "\n"))
	if cleaned == "" {
		return "", ErrEmptyReply
	}
	return truncateRunes(cleaned, maxRunes), nil
}

func normalizeText(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	parts := strings.Fields(trimmed)
	return strings.Join(parts, " ")
}

func truncateRunes(value string, maxRunes int) string {
	if utf8.RuneCountInString(value) <= maxRunes {
		return value
	}
	runes := []rune(value)
	cut := string(runes[:maxRunes])
	lastSpace := strings.LastIndexAny(cut, " \n")
	if lastSpace > len(cut)/2 {
		cut = cut[:lastSpace]
	}
	return strings.TrimSpace(cut)
}
