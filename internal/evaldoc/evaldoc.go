// Package evaldoc assembles the evaluation document sent to the scoring model.
package evaldoc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/suPer8Hu/siteaudit/internal/acquire"
	"github.com/suPer8Hu/siteaudit/internal/seo"
)

const (
	// MaxContentChars caps the crawled page text.
	MaxContentChars = 30000
	// MaxSourceChars caps the combined size of the source files block.
	MaxSourceChars = 80000
)

const missing = "MISSING"

// Input is everything known about one page. Performance and Snapshot are
// optional and their sections are omitted when nil.
type Input struct {
	URL         string
	Metadata    seo.Metadata
	Content     string
	Performance *acquire.Performance
	Snapshot    *acquire.Snapshot
}

func Build(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "URL: %s\n\n", in.URL)
	writeMetadata(&b, in.Metadata)

	b.WriteString("\n=== PAGE CONTENT ===\n")
	b.WriteString(Truncate(in.Content, MaxContentChars))
	b.WriteString("\n")

	if in.Performance != nil {
		writePerformance(&b, in.Performance)
	}
	if in.Snapshot != nil {
		writeSource(&b, in.Snapshot)
	}
	return b.String()
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func writeMetadata(b *strings.Builder, md seo.Metadata) {
	b.WriteString("=== SEO METADATA ===\n")
	facts := []struct {
		label string
		value *string
	}{
		{"Title", md.Title},
		{"Meta description", md.Description},
		{"Viewport", md.Viewport},
		{"Robots", md.Robots},
		{"Canonical URL", md.Canonical},
		{"og:title", md.OGTitle},
		{"og:description", md.OGDescription},
		{"og:image", md.OGImage},
	}
	for _, f := range facts {
		v := missing
		if f.value != nil {
			v = *f.value
		}
		fmt.Fprintf(b, "%s: %s\n", f.label, v)
	}
	fmt.Fprintf(b, "Internal links: %d\n", md.InternalLinks)
	fmt.Fprintf(b, "External links: %d\n", md.ExternalLinks)

	if len(md.StructuredData) == 0 {
		fmt.Fprintf(b, "Structured data (JSON-LD): %s\n", missing)
		return
	}
	fmt.Fprintf(b, "Structured data (JSON-LD): %d block(s)\n", len(md.StructuredData))
	for i, block := range md.StructuredData {
		fmt.Fprintf(b, "[%d] %s\n", i+1, block)
	}
}

func writePerformance(b *strings.Builder, p *acquire.Performance) {
	b.WriteString("\n=== PERFORMANCE (mobile) ===\n")
	fmt.Fprintf(b, "Performance score: %d/100\n", p.Performance)
	fmt.Fprintf(b, "Accessibility score: %d/100\n", p.Accessibility)
	fmt.Fprintf(b, "Best practices score: %d/100\n", p.BestPractices)
	fmt.Fprintf(b, "SEO score: %d/100\n", p.SEO)
	fmt.Fprintf(b, "Largest Contentful Paint: %s\n", Seconds(p.LCP))
	fmt.Fprintf(b, "First Contentful Paint: %s\n", Seconds(p.FCP))
	fmt.Fprintf(b, "Cumulative Layout Shift: %s\n", Unitless(p.CLS))
	fmt.Fprintf(b, "Total Blocking Time: %s\n", Millis(p.TBT))
	fmt.Fprintf(b, "Speed Index: %s\n", Seconds(p.SpeedIndex))
}

// writeSource appends whole files until the next one would push the running
// total past MaxSourceChars.
func writeSource(b *strings.Builder, s *acquire.Snapshot) {
	b.WriteString("\n=== SOURCE CODE ===\n")
	fmt.Fprintf(b, "Repository: %s\n", s.Repository)
	if s.Tree != "" {
		b.WriteString("File tree:\n")
		b.WriteString(s.Tree)
		b.WriteString("\n")
	}

	total, included := 0, 0
	for _, f := range s.Files {
		entry := fmt.Sprintf("\n--- %s ---\n%s\n", f.Path, f.Content)
		n := utf8.RuneCountInString(entry)
		if total+n > MaxSourceChars {
			break
		}
		b.WriteString(entry)
		total += n
		included++
	}
	if included < len(s.Files) {
		fmt.Fprintf(b, "\n(%d of %d files included)\n", included, len(s.Files))
	}
}

// Seconds renders a millisecond timing as seconds, e.g. "2.4 s".
func Seconds(ms *float64) string {
	if ms == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*ms/1000, 'f', 1, 64) + " s"
}

// Millis renders a millisecond timing rounded to a whole number, e.g. "120 ms".
func Millis(ms *float64) string {
	if ms == nil {
		return "n/a"
	}
	return strconv.FormatFloat(math.Round(*ms), 'f', 0, 64) + " ms"
}

func Unitless(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
