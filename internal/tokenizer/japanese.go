package tokenizer

import "unicode"

// scriptClass buckets a rune into the script categories this segmenter
// cares about. No dictionary-based morphological analyser (e.g. an
// IPADIC-backed Lindera/MeCab-style component) exists among this
// module's available dependencies, so Japanese segmentation approximates
// word boundaries from Unicode script-class transitions instead: Han and
// Katakana runs are merged into a single content class, since compound
// surface forms like "検索エンジン" (kanji noun + katakana loanword) are
// common and shouldn't be split at the script boundary, while Hiragana
// runs are mostly grammatical glue and are filtered by the stop-word set
// in stopwords.go.
type scriptClass int

const (
	scriptOther scriptClass = iota
	scriptContent
	scriptHiragana
)

func classifyRune(r rune) scriptClass {
	switch {
	case unicode.Is(unicode.Han, r), unicode.Is(unicode.Katakana, r):
		return scriptContent
	case unicode.Is(unicode.Hiragana, r):
		return scriptHiragana
	default:
		return scriptOther
	}
}

// japaneseSegments scans text for maximal runs of a single Japanese
// script class and emits each run as one candidate surface form,
// lowercased (a no-op for these scripts, kept for uniformity with the
// rest of the pipeline).
func japaneseSegments(text string) []string {
	var segments []string
	var current []rune
	currentClass := scriptOther

	flush := func() {
		if len(current) == 0 {
			return
		}
		if currentClass != scriptOther {
			segments = append(segments, string(current))
		}
		current = current[:0]
	}

	for _, r := range text {
		cls := classifyRune(r)
		if cls != currentClass {
			flush()
			currentClass = cls
		}
		if cls != scriptOther {
			current = append(current, r)
		}
	}
	flush()

	return segments
}
