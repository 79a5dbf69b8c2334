package loader

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kioku-dev/kioku/internal/doc"
	kerrors "github.com/kioku-dev/kioku/internal/errors"
)

// jsonlRecord is the line-delimited JSON corpus format (§6): one record
// per line, id optional.
type jsonlRecord struct {
	ID       string `json:"id"`
	Metadata struct {
		Title string   `json:"title"`
		Date  string   `json:"date"`
		Tags  []string `json:"tags"`
	} `json:"metadata"`
	Text string `json:"text"`
}

// Report accumulates per-line failures for a load. Per §7, a ParseError
// is never fatal: the loader skips the record and keeps going.
type Report struct {
	Loaded int
	Errors []*kerrors.Error
}

// LoadJSONL parses one Document per non-blank line. A malformed line or
// unparseable date is recorded in the returned Report and skipped.
func LoadJSONL(r io.Reader) ([]doc.Document, Report) {
	var docs []doc.Document
	var report Report

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			report.Errors = append(report.Errors, kerrors.ParseError("malformed JSON line", err).
				WithDetail("line", strconv.Itoa(lineNo)))
			continue
		}

		date, err := time.Parse(time.RFC3339, rec.Metadata.Date)
		if err != nil {
			report.Errors = append(report.Errors, kerrors.ParseError("unparseable date", err).
				WithDetail("line", strconv.Itoa(lineNo)))
			continue
		}

		var d doc.Document
		if rec.ID != "" {
			d = doc.WithID(rec.ID, rec.Metadata.Title, date.UTC(), rec.Metadata.Tags, rec.Text)
		} else {
			d = doc.New(rec.Metadata.Title, date.UTC(), rec.Metadata.Tags, rec.Text)
		}
		docs = append(docs, d)
		report.Loaded++
	}

	if err := scanner.Err(); err != nil {
		report.Errors = append(report.Errors, kerrors.IOError("failed to read corpus", err))
	}

	return docs, report
}
