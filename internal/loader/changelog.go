package loader

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kioku-dev/kioku/internal/doc"
	kerrors "github.com/kioku-dev/kioku/internal/errors"
)

// entryHeader matches a change-log entry header per §6:
// "* <title> <date>" optionally followed by one space and one or more
// "[name]:" tag tokens written back to back ("[memo]:[worklog]:").
var entryHeader = regexp.MustCompile(`^\* (.+) (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})((?: (?:\[[^\]]+\]:)+)?)$`)

var tagToken = regexp.MustCompile(`\[([^\]]+)\]:`)

// LoadChangelog parses the plain-text change-log format: entries begin
// with a header line and extend to the line preceding the next header
// or end-of-text.
func LoadChangelog(text string) ([]doc.Document, Report) {
	var docs []doc.Document
	var report Report

	lines := strings.Split(text, "\n")

	type pending struct {
		title string
		date  string
		tags  []string
		body  []string
	}
	var current *pending

	flush := func(p *pending, lineNo int) {
		if p == nil {
			return
		}
		d, err := buildEntry(p.title, p.date, p.tags, strings.TrimSpace(strings.Join(p.body, "\n")))
		if err != nil {
			report.Errors = append(report.Errors, err.WithDetail("line", strconv.Itoa(lineNo)))
			return
		}
		docs = append(docs, d)
		report.Loaded++
	}

	for i, line := range lines {
		if m := entryHeader.FindStringSubmatch(line); m != nil {
			flush(current, i)
			tags := extractTags(m[3])
			current = &pending{title: m[1], date: m[2], tags: tags}
			continue
		}
		if current != nil {
			current.body = append(current.body, line)
		}
	}
	flush(current, len(lines))

	return docs, report
}

func buildEntry(title, dateStr string, tags []string, text string) (doc.Document, *kerrors.Error) {
	date, err := time.Parse("2006-01-02 15:04:05", dateStr)
	if err != nil {
		return doc.Document{}, kerrors.ParseError("unparseable changelog date", err)
	}
	return doc.New(title, date.UTC(), tags, text), nil
}

func extractTags(tail string) []string {
	matches := tagToken.FindAllStringSubmatch(tail, -1)
	if len(matches) == 0 {
		return nil
	}
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}
