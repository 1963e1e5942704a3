// Package htmltext flattens HTML fragments returned by content providers
// into single-line plain text suitable for headlines and teasers.
package htmltext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	skipTags = map[string]bool{
		"script": true, "style": true, "noscript": true,
		"svg": true, "iframe": true, "template": true,
	}
	blockTags = map[string]bool{
		"p": true, "div": true, "br": true, "li": true, "tr": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	}

	truncationMarker = regexp.MustCompile(`\s*…?\s*\[\+\d+ chars\]\s*$`)
)

// Plain converts an HTML fragment to whitespace-normalised text. Input
// without markup passes through with only whitespace collapsed.
func Plain(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return collapse(fragment)
	}

	var sb strings.Builder
	for _, n := range nodes {
		writeText(n, &sb)
	}
	return collapse(sb.String())
}

// Snippet returns Plain(fragment) with a trailing "[+N chars]" truncation
// marker removed.
func Snippet(fragment string) string {
	return strings.TrimSpace(truncationMarker.ReplaceAllString(Plain(fragment), ""))
}

func writeText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		if skipTags[n.Data] {
			return
		}
		if blockTags[n.Data] {
			sb.WriteString(" ")
		}
	}

	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, sb)
	}

	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteString(" ")
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
