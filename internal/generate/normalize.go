package generate

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const fence = "```"

var scriptBlock = regexp.MustCompile(`(?is)<script\b.*?(</script\s*>|$)`)

// Normalize strips markdown code fences around the document, trims it and
// removes script elements. Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	html := stripFences(raw)
	if !strings.Contains(strings.ToLower(html), "<script") {
		return html
	}
	return stripFences(removeScripts(html))
}

func stripFences(s string) string {
	for {
		prev := s
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, fence) {
			s = s[len(fence):]
			if len(s) >= 4 && strings.EqualFold(s[:4], "html") {
				s = s[4:]
			}
			s = strings.TrimSpace(s)
		}
		s = strings.TrimSpace(strings.TrimSuffix(s, fence))
		if s == prev {
			return s
		}
	}
}

func removeScripts(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return scriptBlock.ReplaceAllString(html, "")
	}
	doc.Find("script").Remove()
	// noscript bodies parse as raw text, so nested scripts survive as text.
	doc.Find("noscript").Contents().Each(func(_ int, c *goquery.Selection) {
		if n := c.Get(0); goquery.NodeName(c) == "#text" {
			n.Data = scriptBlock.ReplaceAllString(n.Data, "")
		}
	})
	out, err := doc.Html()
	if err != nil {
		return scriptBlock.ReplaceAllString(html, "")
	}
	if strings.HasPrefix(strings.ToLower(html), "<!doctype") && !strings.HasPrefix(strings.ToLower(out), "<!doctype") {
		out = "<!DOCTYPE html>\n" + out
	}
	return out
}
