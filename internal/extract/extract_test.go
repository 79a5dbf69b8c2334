package extract

import (
	"strings"
	"testing"
)

func TestExtract_Head_DefaultBudget(t *testing.T) {
	text := strings.Repeat("a", 300)
	result := Extract(text, Head, "", TruncationConfig{})

	if len([]rune(result.Text)) != DefaultPreviewChars {
		t.Errorf("expected %d chars, got %d", DefaultPreviewChars, len([]rune(result.Text)))
	}
	if !result.Truncated {
		t.Error("expected Truncated to be true when the default preview budget clips content")
	}
}

func TestExtract_Head_ShortTextNotTruncated(t *testing.T) {
	text := "short"
	result := Extract(text, Head, "", TruncationConfig{})

	if result.Text != text {
		t.Errorf("expected full text, got %q", result.Text)
	}
}

func TestExtract_Full_NoTruncation(t *testing.T) {
	text := "hello world\nsecond line"
	result := Extract(text, Full, "", TruncationConfig{})

	if result.Text != text || result.Truncated {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Stats.TotalLines != 2 {
		t.Errorf("expected 2 lines, got %d", result.Stats.TotalLines)
	}
}

func TestExtract_Full_MaxCharsTruncates(t *testing.T) {
	text := "0123456789"
	result := Extract(text, Full, "", TruncationConfig{MaxChars: 5})

	if result.Text != "01234" || !result.Truncated {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestExtract_ChangelogEntry_FirstEntryByDefault(t *testing.T) {
	text := "* Entry One 2025-01-15 [memo]:\nContent one\n" +
		"* Entry Two 2025-01-16 [dev]:\nContent two"
	result := Extract(text, ChangelogEntry, "", TruncationConfig{MaxChars: 5000})

	if !strings.Contains(result.Text, "Entry One") || strings.Contains(result.Text, "Entry Two") {
		t.Errorf("expected only first entry, got %q", result.Text)
	}
	if result.Truncated {
		t.Error("expected not truncated given generous max_chars")
	}
}

func TestExtract_ChangelogEntry_ByTitle(t *testing.T) {
	text := "* First Entry 2025-01-15 [memo]:\nFirst content\n" +
		"* Target Entry 2025-01-16 [dev]:\nTarget content here"
	result := Extract(text, ChangelogEntry, "Target", TruncationConfig{MaxChars: 5000})

	if !strings.Contains(result.Text, "Target Entry") || !strings.Contains(result.Text, "Target content") {
		t.Errorf("expected target entry, got %q", result.Text)
	}
}

func TestExtract_ChangelogEntry_NoEntriesFallsBackToFull(t *testing.T) {
	text := "no headers here\njust plain text"
	result := Extract(text, ChangelogEntry, "", TruncationConfig{})

	if result.Text != text {
		t.Errorf("expected full text fallback, got %q", result.Text)
	}
}

func TestExtract_MaxLinesTruncates(t *testing.T) {
	text := "line1\nline2\nline3\nline4"
	result := Extract(text, Full, "", TruncationConfig{MaxLines: 2})

	if result.Text != "line1\nline2" || !result.Truncated {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestExtract_StatsReflectPreTruncationSource(t *testing.T) {
	text := strings.Repeat("x", 20)
	result := Extract(text, Full, "", TruncationConfig{MaxChars: 5})

	if result.Stats.TotalChars != 20 {
		t.Errorf("expected total_chars 20, got %d", result.Stats.TotalChars)
	}
	if result.Stats.ExtractedChars != 5 {
		t.Errorf("expected extracted_chars 5, got %d", result.Stats.ExtractedChars)
	}
}
