// Package extract implements the per-strategy content extraction and
// truncation pipeline described in §4.7: Head, ChangelogEntry, and Full.
package extract

import (
	"regexp"
	"strings"
)

// Strategy selects how the full text of a hit is reduced to a preview.
type Strategy int

const (
	// Head returns the leading n Unicode scalars — the backward-compatible
	// "snippet" mode.
	Head Strategy = iota
	// ChangelogEntry returns the change-log entry matching an optional
	// target title, or the first entry if none is given.
	ChangelogEntry
	// Full returns the entire text, subject only to truncation.
	Full
)

// DefaultPreviewChars is the default budget for the Head strategy on the
// editor-plugin surface.
const DefaultPreviewChars = 150

// TruncationConfig bounds the extracted text. Order of application is
// fixed: MaxChars, then MaxLines, then MaxSections.
type TruncationConfig struct {
	MaxChars    int // 0 means unlimited
	MaxLines    int
	MaxSections int
}

// ContentStats reports sizes computed on the pre-truncation text.
type ContentStats struct {
	TotalChars     int
	TotalLines     int
	ExtractedChars int
}

// Content is the result of an extraction.
type Content struct {
	Text      string
	Truncated bool
	Stats     ContentStats
}

// entryHeaderPattern matches a change-log entry header: "* <anything>
// <date>" per §4.7.
var entryHeaderPattern = regexp.MustCompile(`^\* .+ \d{4}-\d{2}-\d{2}`)

// Extract runs strategy over text and applies cfg's truncation order.
// targetTitle is only consulted by ChangelogEntry; pass "" to take the
// first entry.
func Extract(text string, strategy Strategy, targetTitle string, cfg TruncationConfig) Content {
	switch strategy {
	case Head:
		body, clipped := headText(text, previewBudget(cfg))
		return truncate(body, text, cfg, 0, clipped)
	case ChangelogEntry:
		entry, sectionCount := findEntry(text, targetTitle)
		return truncate(entry, text, cfg, sectionCount, false)
	default: // Full
		return truncate(text, text, cfg, 0, false)
	}
}

func previewBudget(cfg TruncationConfig) int {
	if cfg.MaxChars > 0 {
		return cfg.MaxChars
	}
	return DefaultPreviewChars
}

// headText returns the leading n runes of text and reports whether it
// clipped anything — true whenever content was dropped, regardless of
// whether the caller explicitly set a MaxChars budget (the Head
// strategy applies DefaultPreviewChars even when it didn't).
func headText(text string, n int) (string, bool) {
	runes := []rune(text)
	if n >= len(runes) {
		return text, false
	}
	return string(runes[:n]), true
}

// entry holds one parsed change-log record's body (header line onward).
type entry struct {
	title string
	body  string
}

func findEntry(text string, targetTitle string) (string, int) {
	entries := parseEntries(text)
	if len(entries) == 0 {
		return text, 0
	}
	if targetTitle == "" {
		return entries[0].body, len(entries)
	}
	for _, e := range entries {
		if strings.Contains(e.title, targetTitle) {
			return e.body, len(entries)
		}
	}
	return entries[0].body, len(entries)
}

func parseEntries(text string) []entry {
	lines := strings.Split(text, "\n")
	var entries []entry
	var curStart = -1

	flush := func(start, end int) {
		if start < 0 {
			return
		}
		header := lines[start]
		entries = append(entries, entry{
			title: header,
			body:  strings.TrimRight(strings.Join(lines[start:end], "\n"), " \t\n"),
		})
	}

	for i, line := range lines {
		if entryHeaderPattern.MatchString(line) {
			flush(curStart, i)
			curStart = i
		}
	}
	flush(curStart, len(lines))
	return entries
}

func truncate(extracted, sourceForStats string, cfg TruncationConfig, sectionCount int, preTruncated bool) Content {
	stats := ContentStats{
		TotalChars: len([]rune(sourceForStats)),
		TotalLines: len(strings.Split(sourceForStats, "\n")),
	}

	truncated := preTruncated
	out := extracted

	if cfg.MaxChars > 0 {
		runes := []rune(out)
		if len(runes) > cfg.MaxChars {
			out = string(runes[:cfg.MaxChars])
			truncated = true
		}
	}

	if cfg.MaxLines > 0 {
		lines := strings.Split(out, "\n")
		if len(lines) > cfg.MaxLines {
			out = strings.Join(lines[:cfg.MaxLines], "\n")
			truncated = true
		}
	}

	if cfg.MaxSections > 0 && sectionCount > cfg.MaxSections {
		entries := parseEntries(out)
		if len(entries) > cfg.MaxSections {
			var kept []string
			for _, e := range entries[:cfg.MaxSections] {
				kept = append(kept, e.body)
			}
			out = strings.Join(kept, "\n")
			truncated = true
		}
	}

	stats.ExtractedChars = len([]rune(out))
	return Content{Text: out, Truncated: truncated, Stats: stats}
}
