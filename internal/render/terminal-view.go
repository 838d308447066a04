package render

import (
	"fmt"
	"github.com/charmbracelet/glamour"
	"github.com/iamvkosarev/vedai/internal/model"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	clearLine    = "\r\x1b[K"
	clearScreen  = "\x1b[H\x1b[2J"
	clearBelow   = "\r\x1b[J"
	cursorUp     = "\x1b[%dA"
	chatDivider  = "----------------------------------------"
	defaultWidth = 80
)

type TerminalViewConfig struct {
	// Styled enables ANSI control sequences and markdown rendering.
	Styled bool
	// Theme is a glamour standard style name, e.g. "dark" or "light".
	Theme string
	Width int
}

// TerminalView draws the conversation to a terminal. Streamed text is
// written as it grows and replaced by rendered markdown once committed.
type TerminalView struct {
	out      io.Writer
	cfg      TerminalViewConfig
	markdown *glamour.TermRenderer

	shown    string
	lineOpen bool
}

func NewTerminalView(out io.Writer, cfg TerminalViewConfig) *TerminalView {
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	view := &TerminalView{
		out: out,
		cfg: cfg,
	}
	if cfg.Styled {
		view.SetTheme(cfg.Theme)
	}
	return view
}

// SetTheme switches the markdown style. Unknown themes disable markdown.
func (v *TerminalView) SetTheme(theme string) {
	v.cfg.Theme = theme
	if !v.cfg.Styled {
		return
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme),
		glamour.WithWordWrap(v.cfg.Width),
	)
	if err != nil {
		slog.Warn("failed to create markdown renderer", "theme", theme, "error", err)
		v.markdown = nil
		return
	}
	v.markdown = renderer
}

func (v *TerminalView) Reset() {
	v.closeLine()
	if v.cfg.Styled {
		v.write(clearScreen)
		return
	}
	v.write(chatDivider + "\n")
}

func (v *TerminalView) Placeholder(text string) func() {
	v.closeLine()
	v.write(text)
	dismissed := false
	return func() {
		if dismissed {
			return
		}
		dismissed = true
		if v.cfg.Styled {
			v.write(clearLine)
			return
		}
		v.write("\n")
	}
}

func (v *TerminalView) Append(message model.Message) func(string) {
	v.closeLine()
	v.write(rolePrefix(message.Role))
	v.shown = ""
	if message.Content != "" {
		v.writeMessage(message)
		return v.updater(message.Role)
	}
	v.lineOpen = true
	return v.updater(message.Role)
}

func (v *TerminalView) updater(role model.MessageRole) func(string) {
	active := true
	return func(content string) {
		if !active {
			return
		}
		if !v.lineOpen {
			v.write(rolePrefix(role))
			v.shown = ""
			v.lineOpen = true
		}
		if strings.HasPrefix(content, v.shown) {
			v.write(content[len(v.shown):])
		} else {
			v.write("\n" + content)
		}
		v.shown = content
	}
}

// Commit ends the streamed message. In styled mode a streamed assistant reply
// is erased and drawn again as markdown.
func (v *TerminalView) Commit(message model.Message) {
	if !v.lineOpen {
		return
	}
	if message.Role != model.MessageRoleAssistant || v.markdown == nil {
		v.closeLine()
		return
	}
	rendered, err := v.markdown.Render(message.Content)
	if err != nil {
		slog.Debug("failed to render markdown", "error", err)
		v.closeLine()
		return
	}
	if rows := visualRows(rolePrefix(message.Role)+v.shown, v.cfg.Width); rows > 1 {
		v.write(fmt.Sprintf(cursorUp, rows-1))
	}
	v.write(clearBelow)
	v.write(rolePrefix(message.Role) + "\n" + rendered)
	v.lineOpen = false
	v.shown = ""
}

// visualRows counts the terminal rows text occupies when wrapped at width.
func visualRows(text string, width int) int {
	rows := 0
	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line)
		if n == 0 {
			rows++
			continue
		}
		rows += (n + width - 1) / width
	}
	return rows
}

func (v *TerminalView) writeMessage(message model.Message) {
	if message.Role == model.MessageRoleAssistant && v.markdown != nil {
		rendered, err := v.markdown.Render(message.Content)
		if err == nil {
			v.write("\n" + rendered)
			return
		}
		slog.Debug("failed to render markdown", "error", err)
	}
	v.write(message.Content + "\n")
}

func (v *TerminalView) closeLine() {
	if v.lineOpen {
		v.write("\n")
		v.lineOpen = false
	}
	v.shown = ""
}

func (v *TerminalView) write(s string) {
	_, _ = fmt.Fprint(v.out, s)
}

func rolePrefix(role model.MessageRole) string {
	switch role {
	case model.MessageRoleUser:
		return "you> "
	case model.MessageRoleSystem:
		return "system> "
	default:
		return "vedai> "
	}
}
