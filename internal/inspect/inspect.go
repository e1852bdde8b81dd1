// Package inspect summarizes a fetched page before it is sent to a model:
// how much of it is markup weight and which colors and fonts it uses.
package inspect

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const defaultTop = 5

type Report struct {
	Chars        int
	Title        string
	StyleBlocks  int
	Stylesheets  int
	InlineStyles int
	Scripts      int
	SVGs         int
	Images       int
	// Weight is the character count of heavy subtrees keyed by tag.
	Weight  map[string]int
	Colors  []Count
	Fonts   []Count
	Matches []Match
}

type Count struct {
	Value string
	N     int
}

type Match struct {
	Tag     string
	ID      string
	Class   string
	TextLen int
	Links   int
}

var (
	hexColor   = regexp.MustCompile(`#(?:[0-9a-fA-F]{6}|[0-9a-fA-F]{3})\b`)
	fnColor    = regexp.MustCompile(`(?i)\b(?:rgba?|hsla?)\([^)]*\)`)
	fontFamily = regexp.MustCompile(`(?i)font-family\s*:\s*([^;}]+)`)
)

// Analyze parses html and fills a Report. selector, when set, is also
// matched and up to three matches are described.
func Analyze(html, selector string) (Report, error) {
	if strings.TrimSpace(html) == "" {
		return Report{}, errors.New("empty html")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Report{}, err
	}

	r := Report{
		Chars:        len([]rune(html)),
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		StyleBlocks:  doc.Find("style").Length(),
		Stylesheets:  doc.Find(`link[rel="stylesheet"]`).Length(),
		InlineStyles: doc.Find("[style]").Length(),
		Scripts:      doc.Find("script").Length(),
		SVGs:         doc.Find("svg").Length(),
		Images:       doc.Find("img").Length(),
		Weight:       map[string]int{},
	}
	for _, tag := range []string{"script", "style", "svg", "noscript"} {
		doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
			if h, err := goquery.OuterHtml(s); err == nil {
				r.Weight[tag] += len([]rune(h))
			}
		})
	}

	var css strings.Builder
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		css.WriteString(s.Text())
		css.WriteByte('\n')
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		css.WriteString(s.AttrOr("style", ""))
		css.WriteByte(';')
	})
	r.Colors = topColors(css.String(), defaultTop)
	r.Fonts = topFonts(css.String(), defaultTop)

	if strings.TrimSpace(selector) != "" {
		r.Matches = describe(doc.Find(selector), 3)
	}
	return r, nil
}

func topColors(css string, limit int) []Count {
	counts := map[string]int{}
	for _, c := range hexColor.FindAllString(css, -1) {
		counts[strings.ToLower(c)]++
	}
	for _, c := range fnColor.FindAllString(css, -1) {
		counts[strings.ToLower(strings.Join(strings.Fields(c), ""))]++
	}
	return top(counts, limit)
}

func topFonts(css string, limit int) []Count {
	counts := map[string]int{}
	for _, m := range fontFamily.FindAllStringSubmatch(css, -1) {
		first := strings.Split(m[1], ",")[0]
		first = strings.Trim(strings.TrimSpace(first), `'"`)
		if first != "" && !strings.HasPrefix(first, "var(") && first != "inherit" {
			counts[first]++
		}
	}
	return top(counts, limit)
}

func top(counts map[string]int, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for v, n := range counts {
		out = append(out, Count{Value: v, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func describe(sel *goquery.Selection, limit int) []Match {
	var out []Match
	sel.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= limit {
			return false
		}
		m := Match{
			ID:      s.AttrOr("id", ""),
			Class:   s.AttrOr("class", ""),
			TextLen: len(strings.TrimSpace(s.Text())),
			Links:   s.Find("a").Length(),
		}
		if n := s.Get(0); n != nil {
			m.Tag = n.Data
		}
		out = append(out, m)
		return true
	})
	return out
}

func Print(w io.Writer, r Report) {
	if r.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", r.Title)
	}
	fmt.Fprintf(w, "Size: %d chars\n", r.Chars)
	fmt.Fprintf(w, "Styles: %d <style>, %d stylesheet links, %d inline\n", r.StyleBlocks, r.Stylesheets, r.InlineStyles)
	fmt.Fprintf(w, "Elements: %d scripts, %d svg, %d img\n", r.Scripts, r.SVGs, r.Images)

	if len(r.Weight) > 0 {
		tags := make([]string, 0, len(r.Weight))
		for tag := range r.Weight {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		fmt.Fprintln(w, "Markup weight:")
		for _, tag := range tags {
			fmt.Fprintf(w, "- %s: %d chars\n", tag, r.Weight[tag])
		}
	}
	printCounts(w, "Top colors:", r.Colors)
	printCounts(w, "Top fonts:", r.Fonts)

	for i, m := range r.Matches {
		fmt.Fprintf(w, "\n--- Match #%d ---\n", i+1)
		fmt.Fprintf(w, "Tag: %s\n", m.Tag)
		if m.ID != "" {
			fmt.Fprintf(w, "ID: %s\n", m.ID)
		}
		if m.Class != "" {
			fmt.Fprintf(w, "Class: %s\n", m.Class)
		}
		fmt.Fprintf(w, "Text Length: %d chars\n", m.TextLen)
		fmt.Fprintf(w, "Links inside: %d\n", m.Links)
	}
}

func printCounts(w io.Writer, title string, counts []Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for _, c := range counts {
		fmt.Fprintf(w, "- %s (%d)\n", c.Value, c.N)
	}
}
