package render

import (
	"bytes"
	"fmt"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
	"html"
	"regexp"
	"strings"
)

const (
	codeStyleName   = "github"
	plainTextLexer  = "plaintext"
	copyButtonLabel = "Copy"
)

var (
	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(newCodeBlockRenderer(), 200)),
		),
	)
	policy = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)).Globally()
	p.AllowElements("div", "span", "button")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^button$`)).OnElements("button")
	return p
}

// Markdown converts assistant text into sanitized HTML. Fenced code blocks
// are highlighted and carry a copy button.
func Markdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

// Message renders one message body. Only assistant content is treated as
// markdown; everything else is shown as plain text.
func Message(message model.Message) string {
	if message.Role == model.MessageRoleAssistant {
		rendered, err := Markdown(message.Content)
		if err == nil {
			return rendered
		}
	}
	return strings.ReplaceAll(html.EscapeString(message.Content), "\n", "<br>")
}

type codeBlockRenderer struct {
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

func newCodeBlockRenderer() *codeBlockRenderer {
	style := styles.Get(codeStyleName)
	if style == nil {
		style = styles.Fallback
	}
	return &codeBlockRenderer{
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
		style:     style,
	}
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(
	w util.BufWriter,
	source []byte,
	node ast.Node,
	entering bool,
) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	block := node.(*ast.FencedCodeBlock)
	language := string(block.Language(source))

	var code strings.Builder
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}

	label := language
	if label == "" {
		label = plainTextLexer
	}
	_, _ = fmt.Fprintf(
		w,
		`<div class="code-block"><div class="code-header"><span class="code-language">%s</span><button class="copy-btn" type="button">%s</button></div>`,
		html.EscapeString(label),
		copyButtonLabel,
	)
	if err := r.highlight(w, code.String(), language); err != nil {
		_, _ = fmt.Fprintf(w, "<pre><code>%s</code></pre>", html.EscapeString(code.String()))
	}
	_, _ = w.WriteString("</div>\n")
	return ast.WalkSkipChildren, nil
}

func (r *codeBlockRenderer) highlight(w util.BufWriter, code, language string) error {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = r.formatter.Format(&buf, r.style, iterator); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}
