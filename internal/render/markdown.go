// Package render provides markdown rendering for terminal output, plus
// markdown builders for marketplace listings.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	virtus "github.com/virtus-ai/virtus-go"
)

// Renderer renders markdown to the terminal.
type Renderer struct {
	gr     *glamour.TermRenderer
	writer io.Writer
}

// NewRenderer creates a Renderer writing to the given writer.
// If w is nil, os.Stdout is used.
func NewRenderer(w io.Writer) (*Renderer, error) {
	if w == nil {
		w = os.Stdout
	}
	gr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("create glamour renderer: %w", err)
	}
	return &Renderer{gr: gr, writer: w}, nil
}

// Render renders a complete markdown string to the writer.
func (r *Renderer) Render(markdown string) error {
	out, err := r.gr.Render(markdown)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = fmt.Fprint(r.writer, out)
	return err
}

// RenderStream progressively renders streamed content.
// It accumulates fragments and renders when a complete block boundary is
// detected or when flush is true.
func (r *Renderer) RenderStream(accumulated string, delta string, flush bool) (string, error) {
	accumulated += delta
	if flush || strings.Contains(delta, "\n\n") || strings.HasSuffix(accumulated, "```\n") {
		if err := r.Render(accumulated); err != nil {
			return "", err
		}
		return "", nil // reset accumulator after rendering
	}
	return accumulated, nil
}

// ModelTable formats marketplace models as a markdown table.
func ModelTable(models []virtus.Model) string {
	if len(models) == 0 {
		return "No models available."
	}
	var sb strings.Builder
	sb.WriteString("| Model | Slug | Category | Provider | $/1K in | $/1K out |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, m := range models {
		priceIn, priceOut := "-", "-"
		if m.Pricing != nil {
			priceIn = fmt.Sprintf("%.4f", m.Pricing.PricePer1KInputTokens)
			priceOut = fmt.Sprintf("%.4f", m.Pricing.PricePer1KOutputTokens)
		}
		name := m.Name
		if !m.IsActive {
			name += " (inactive)"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			name, m.Slug, m.Category, m.Provider, priceIn, priceOut))
	}
	return sb.String()
}

// SourceTable formats data sources as a markdown table.
func SourceTable(sources []virtus.DataSource) string {
	if len(sources) == 0 {
		return "No data sources."
	}
	var sb strings.Builder
	sb.WriteString("| Source | ID | Status | Documents |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, s := range sources {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n", s.Name, s.ID, s.Status, s.DocumentCount))
	}
	return sb.String()
}

// ChunkList formats retrieval results as a numbered markdown list with
// blockquoted passages.
func ChunkList(chunks []virtus.RAGChunk) string {
	if len(chunks) == 0 {
		return "No matching passages."
	}
	var sb strings.Builder
	for i, c := range chunks {
		sb.WriteString(fmt.Sprintf("%d. **%s** (score %.2f)\n\n", i+1, c.DocumentName, c.Score))
		sb.WriteString(fmt.Sprintf("   > %s\n\n", c.Content))
	}
	return sb.String()
}

// ConversationTable formats stored conversations as a markdown table.
func ConversationTable(convs []virtus.Conversation) string {
	if len(convs) == 0 {
		return "No conversations yet."
	}
	var sb strings.Builder
	sb.WriteString("| Conversation | Title | Messages | Updated |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, c := range convs {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n", c.ID, title, c.MessageCount, c.UpdatedAt))
	}
	return sb.String()
}
