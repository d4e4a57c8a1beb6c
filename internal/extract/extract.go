// Package extract locates readable article text inside raw markup.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// boilerplate never contributes to article text.
const boilerplateSelector = "script, style, nav, header, footer, aside, form, noscript, iframe"

// candidateSelectors are tried in order of preference; the one holding
// the most text wins.
var candidateSelectors = []string{
	"article",
	"main",
	"[role=main]",
	"#content",
	".article-body",
	".post-content",
	".entry-content",
}

// Extractor implements pipeline.Extractor with structural heuristics.
type Extractor struct {
	maxBytes int
}

// New builds an Extractor. maxBytes caps the returned text; zero or
// negative means no cap.
func New(maxBytes int) *Extractor {
	return &Extractor{maxBytes: maxBytes}
}

// Extract returns the article text and whether a readable body was
// found. Malformed or structureless markup yields ("", false); the
// caller records the page as fetched-but-unparsable rather than failed.
func (e *Extractor) Extract(markup []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return "", false
	}
	doc.Find(boilerplateSelector).Remove()

	text := e.dominantText(doc)
	if text == "" {
		text = collapse(doc.Find("body").Text())
	}
	if text == "" {
		return "", false
	}
	if e.maxBytes > 0 && len(text) > e.maxBytes {
		text = text[:e.maxBytes]
	}
	return text, true
}

// dominantText picks the candidate container with the most text.
func (e *Extractor) dominantText(doc *goquery.Document) string {
	best := ""
	for _, sel := range candidateSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if t := collapse(s.Text()); len(t) > len(best) {
				best = t
			}
		})
	}
	return best
}

// collapse mimics get_text(separator=" ", strip=True): runs of
// whitespace become single spaces.
func collapse(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
