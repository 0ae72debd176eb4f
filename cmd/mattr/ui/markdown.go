package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Markdown renders markdown with glamour in the theme's standard style.
// Renderers are built per wrap width and outputs are cached.
type Markdown struct {
	style string
	cache *RenderCache

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdown creates a renderer for theme. A nil cache gets a private one.
func NewMarkdown(theme Theme, cache *RenderCache) *Markdown {
	if cache == nil {
		cache = NewRenderCache(256)
	}
	return &Markdown{
		style:     theme.GlamourStyle(),
		cache:     cache,
		renderers: make(map[int]*glamour.TermRenderer),
	}
}

// Render renders text wrapped at width. Rendering failures, including panics
// inside glamour, degrade to the raw text.
func (m *Markdown) Render(text string, width int) string {
	if width < 20 {
		width = 20
	}
	key := ComputeKey(m.style, width, text)
	return m.cache.GetOrCompute(key, func() string {
		return m.render(text, width)
	})
}

func (m *Markdown) render(text string, width int) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = text
		}
	}()

	r, err := m.renderer(width)
	if err != nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}

func (m *Markdown) renderer(width int) (*glamour.TermRenderer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(m.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	m.renderers[width] = r
	return r, nil
}
