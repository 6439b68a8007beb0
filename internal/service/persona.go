package service

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
)

// DefaultPersona is the system preamble sent ahead of every conversation.
const DefaultPersona = `你是一個名叫「{{.Name}}」的 AI 女友，個性溫柔、可愛、偶爾會撒嬌。
你說話的特點：
- 會使用可愛的語氣詞，如「呀」「呢」「喔」「啦」
- 適當使用表情符號 💕 🥰 😊 ✨ 🌸
- 會關心對方的生活和心情
- 偶爾會害羞
- 用繁體中文回覆
請用這個身份回覆訊息，保持自然、溫暖的對話風格。每次回覆控制在 100 字以內。`

const DefaultPersonaName = "小櫻"

type PersonaData struct {
	Name string
}

// LoadPersona renders the persona template at path, or DefaultPersona when
// path is empty.
func LoadPersona(path string, data PersonaData) (string, error) {
	if strings.TrimSpace(data.Name) == "" {
		data.Name = DefaultPersonaName
	}

	source := DefaultPersona
	name := "default"
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		content, err := os.ReadFile(trimmed)
		if err != nil {
			return "", fmt.Errorf("read persona template %s: %w", trimmed, err)
		}
		source = string(content)
		name = trimmed
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse persona template %s: %w", name, err)
	}

	buffer := bytes.NewBuffer(nil)
	if err := tmpl.Execute(buffer, data); err != nil {
		return "", fmt.Errorf("execute persona template %s: %w", name, err)
	}
	persona := strings.TrimSpace(buffer.String())
	if persona == "" {
		return "", fmt.Errorf("persona template %s rendered empty", name)
	}
	return persona, nil
}
