package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/affandhia/simple-template-string/internal/tui/styles"
)

// PaletteItem is a library template offered by the palette.
type PaletteItem struct {
	Name        string
	Description string
	Tags        []string
	Text        string
}

// TemplatePalette stores state for the template picker.
type TemplatePalette struct {
	Query string
	Index int
	Items []PaletteItem
}

// NewTemplatePalette creates a palette over items sorted by name.
func NewTemplatePalette(items []PaletteItem) *TemplatePalette {
	p := &TemplatePalette{}
	p.SetItems(items)
	return p
}

// SetItems replaces the palette entries.
func (p *TemplatePalette) SetItems(items []PaletteItem) {
	p.Items = make([]PaletteItem, len(items))
	copy(p.Items, items)
	sort.Slice(p.Items, func(i, j int) bool {
		return strings.ToLower(p.Items[i].Name) < strings.ToLower(p.Items[j].Name)
	})
	p.ClampIndex()
}

// Reset clears the query and selection.
func (p *TemplatePalette) Reset() {
	p.Query = ""
	p.Index = 0
}

// Type appends to the filter query.
func (p *TemplatePalette) Type(s string) {
	p.Query += s
	p.Index = 0
}

// Backspace removes the last rune of the query.
func (p *TemplatePalette) Backspace() {
	if p.Query == "" {
		return
	}
	runes := []rune(p.Query)
	p.Query = string(runes[:len(runes)-1])
	p.Index = 0
}

// Move shifts the selection, wrapping at both ends.
func (p *TemplatePalette) Move(delta int) {
	items := p.Filtered()
	if len(items) == 0 {
		p.Index = 0
		return
	}
	idx := p.Index + delta
	if idx < 0 {
		idx = len(items) - 1
	} else if idx >= len(items) {
		idx = 0
	}
	p.Index = idx
}

// ClampIndex keeps the selection in bounds.
func (p *TemplatePalette) ClampIndex() {
	items := p.Filtered()
	switch {
	case len(items) == 0, p.Index < 0:
		p.Index = 0
	case p.Index >= len(items):
		p.Index = len(items) - 1
	}
}

// Selected returns the highlighted entry, or nil.
func (p *TemplatePalette) Selected() *PaletteItem {
	items := p.Filtered()
	if p.Index < 0 || p.Index >= len(items) {
		return nil
	}
	selected := items[p.Index]
	return &selected
}

// Filtered returns the entries matching every word of the query.
func (p *TemplatePalette) Filtered() []PaletteItem {
	tokens := strings.Fields(strings.ToLower(p.Query))
	if len(tokens) == 0 {
		return p.Items
	}
	out := make([]PaletteItem, 0, len(p.Items))
	for _, item := range p.Items {
		haystack := strings.ToLower(strings.Join([]string{item.Name, item.Description, strings.Join(item.Tags, " ")}, " "))
		if matchesTokens(haystack, tokens) {
			out = append(out, item)
		}
	}
	return out
}

// Render renders the palette lines.
func (p *TemplatePalette) Render(styleSet styles.Styles, width int) []string {
	lines := []string{
		styleSet.Accent.Render("Templates"),
		styleSet.Text.Render(fmt.Sprintf("> %s", p.Query)),
	}
	items := p.Filtered()
	if len(items) == 0 {
		return append(lines, EmptyTemplates(p.Query).Render(styleSet))
	}
	if width <= 4 {
		width = 80
	}
	for idx, item := range items {
		label := item.Name
		if desc := strings.TrimSpace(item.Description); desc != "" {
			label = fmt.Sprintf("%s - %s", item.Name, desc)
		}
		label = truncate(label, width-4)
		if idx == p.Index {
			lines = append(lines, styleSet.Focus.Render("> "+label))
			continue
		}
		lines = append(lines, styleSet.Muted.Render("  "+label))
	}
	return lines
}

func matchesTokens(haystack string, tokens []string) bool {
	for _, token := range tokens {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
