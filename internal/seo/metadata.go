// Package seo extracts search-relevant facts from page markup.
package seo

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Metadata holds the on-page facts. A nil pointer means the fact is missing
// from the page, which is itself a scoring signal.
type Metadata struct {
	Title         *string
	Description   *string
	Viewport      *string
	Robots        *string
	Canonical     *string
	OGTitle       *string
	OGDescription *string
	OGImage       *string

	// StructuredData holds every JSON-LD block that parsed as JSON.
	StructuredData []string

	InternalLinks int
	ExternalLinks int
}

// Extract parses raw markup. Link counts are left at zero; see CountLinks.
func Extract(rawHTML string) (Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Metadata{}, fmt.Errorf("parse html: %w", err)
	}

	var md Metadata
	md.Title = nonEmpty(doc.Find("title").First().Text())

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		name := strings.ToLower(strings.TrimSpace(s.AttrOr("name", "")))
		property := strings.ToLower(strings.TrimSpace(s.AttrOr("property", "")))
		switch {
		case name == "description":
			setOnce(&md.Description, content)
		case name == "viewport":
			setOnce(&md.Viewport, content)
		case name == "robots":
			setOnce(&md.Robots, content)
		case property == "og:title" || name == "og:title":
			setOnce(&md.OGTitle, content)
		case property == "og:description" || name == "og:description":
			setOnce(&md.OGDescription, content)
		case property == "og:image" || name == "og:image":
			setOnce(&md.OGImage, content)
		}
	})

	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "canonical" {
				setOnce(&md.Canonical, s.AttrOr("href", ""))
				return false
			}
		}
		return true
	})

	doc.Find("script[type]").Each(func(_ int, s *goquery.Selection) {
		typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		if typ != "application/ld+json" {
			return
		}
		body := strings.TrimSpace(s.Text())
		if body == "" || !json.Valid([]byte(body)) {
			return
		}
		md.StructuredData = append(md.StructuredData, body)
	})

	return md, nil
}

// Anchors returns every href found in <a> elements, in document order.
func Anchors(rawHTML string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" {
			out = append(out, href)
		}
	})
	return out
}

func nonEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func setOnce(dst **string, v string) {
	if *dst != nil {
		return
	}
	*dst = nonEmpty(v)
}
