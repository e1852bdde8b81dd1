// Package prompt turns acquired HTML into a bounded instruction payload for
// the clone generator.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxChars = 70000
	DefaultMarker   = "\n...[TRUNCATED]..."

	URLPlaceholder  = "{{URL}}"
	HTMLPlaceholder = "{{HTML}}"
)

// DefaultTemplate asks for a single self-contained document that keeps the
// original background/text color pairing.
const DefaultTemplate = `You are an AI web designer tasked with creating an aesthetic HTML clone of a given website.
Your goal is to replicate the visual appearance, layout, **original color scheme (including background and text colors)**, and typography using a *single, self-contained HTML file*.

**Key Instructions for Color:**
* Pay close attention to the **original background color** of the page (e.g., white, light gray, black, etc.).
* Pay close attention to the **primary text color** used on that background.
* Replicate this **exact background-text color pairing**. For instance, if the original is black text on a white background, your clone must also have black text on a white background. Do not approximate either color on its own.
* Preserve the color of hyperlinks if discernible.

**General Instructions:**
1. Analyze the provided HTML structure and content for its aesthetic qualities.
2. Generate a *new* HTML structure. Do NOT simply copy the input HTML.
3. Use inline CSS or a single <style> block within the <head> for all styling. Do not use external CSS files.
4. Do NOT include any JavaScript or <script> tags.
5. Focus on visual fidelity to the original, especially the color palette.
6. The output must be ONLY the complete HTML code, starting with <!DOCTYPE html> or <html> and ending with </html>.
7. Do not include any explanations, comments, or markdown formatting (like ` + "```html" + `) outside of the HTML code itself.

**Original Website URL (for context only):** {{URL}}

**Original Website HTML (for aesthetic reference - may be truncated):**
` + "```html" + `
{{HTML}}
` + "```" + `

Now, generate the new, self-contained HTML code that aesthetically clones the site, ensuring the background and text colors match the original:
`

type Options struct {
	MaxChars int
	Marker   string
	Template string
}

// Prompt is the rendered instruction text.
type Prompt struct {
	Text          string
	Truncated     bool
	OriginalChars int
}

// Builder is safe for concurrent use; it holds no mutable state.
type Builder struct {
	maxChars int
	marker   string
	template string
}

func NewBuilder(opts Options) (*Builder, error) {
	if opts.MaxChars < 0 {
		return nil, fmt.Errorf("max chars must be >= 0, got %d", opts.MaxChars)
	}
	if opts.MaxChars == 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Marker == "" {
		opts.Marker = DefaultMarker
	}
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}
	if strings.Count(opts.Template, HTMLPlaceholder) != 1 {
		return nil, errors.New("prompt template must contain " + HTMLPlaceholder + " exactly once")
	}
	return &Builder{maxChars: opts.MaxChars, marker: opts.Marker, template: opts.Template}, nil
}

// LoadTemplate reads a template file; an empty path yields DefaultTemplate.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	return string(data), nil
}

func (b *Builder) MaxChars() int  { return b.maxChars }
func (b *Builder) Marker() string { return b.marker }

// Build embeds html and url into the template, cutting html to the character
// budget and appending the marker when it is over.
func (b *Builder) Build(html, url string) Prompt {
	body, truncated, total := truncate(html, b.maxChars)
	if truncated {
		body += b.marker
	}
	text := strings.NewReplacer(URLPlaceholder, url, HTMLPlaceholder, body).Replace(b.template)
	return Prompt{Text: text, Truncated: truncated, OriginalChars: total}
}

// Overhead is the template's length in characters once url is substituted and
// the HTML slot is empty.
func (b *Builder) Overhead(url string) int {
	return utf8.RuneCountInString(b.Build("", url).Text)
}

func truncate(s string, limit int) (string, bool, int) {
	total := utf8.RuneCountInString(s)
	if total <= limit {
		return s, false, total
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true, total
		}
		n++
	}
	return s, false, total
}
