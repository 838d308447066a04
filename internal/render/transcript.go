package render

import (
	"fmt"
	"github.com/iamvkosarev/vedai/internal/model"
	"html"
	"strings"
)

// HTML renders messages as a chat fragment.
func HTML(messages []model.Message) string {
	var b strings.Builder
	b.WriteString(`<div class="chat">`)
	for _, message := range messages {
		_, _ = fmt.Fprintf(
			&b,
			`<div class="message %s"><div class="content">%s</div></div>`,
			html.EscapeString(string(message.Role)),
			Message(message),
		)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// Transcript renders a whole conversation as a standalone HTML document.
func Transcript(title string, messages []model.Message) string {
	return fmt.Sprintf(
		"<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>%s</body></html>\n",
		html.EscapeString(title),
		HTML(messages),
	)
}
