// Package docs talks to the external document search service and fetches
// document full text, with a pluggable cache in front of the fetcher.
package docs

import "regexp"

// IDPattern matches a document identifier: fixed prefix plus at least
// eight digits.
var IDPattern = regexp.MustCompile(`EFTA\d{8,}`)

// Document is one search hit, optionally enriched with full text.
type Document struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Snippet  string  `json:"snippet,omitempty"`
	FullText string  `json:"full_text,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// ExtractID pulls the first document identifier out of free text. Search
// hits sometimes carry an internal id but name the real identifier only in
// the title.
func ExtractID(s string) string {
	return IDPattern.FindString(s)
}

// ResolveID returns the document's canonical identifier, recovering it from
// the title when the id field carries something else.
func ResolveID(d Document) string {
	if IDPattern.MatchString(d.ID) {
		return IDPattern.FindString(d.ID)
	}
	if id := ExtractID(d.Title); id != "" {
		return id
	}
	return d.ID
}

var emTagRe = regexp.MustCompile(`</?em>`)

// NormalizeSnippet rewrites search-service highlight tags as markdown bold
// so snippets can go straight into prompts.
func NormalizeSnippet(s string) string {
	return emTagRe.ReplaceAllString(s, "**")
}

// Truncate caps s at n bytes, backing up to a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}
