package tokenizer

// stopWords is the fixed set of very-common Japanese function words (and
// particles left over from the script-class segmentation in japanese.go)
// dropped from the final token stream. It stands in for the POS-based
// particle/auxiliary-verb exclusion a dictionary-backed analyser would
// otherwise perform.
var stopWords = buildStopWords()

func buildStopWords() map[string]struct{} {
	words := []string{
		"は", "が", "を", "に", "で", "と", "も", "の", "へ", "や",
		"から", "まで", "より", "です", "ます", "した", "して", "する",
		"という", "これ", "それ", "あれ", "この", "その", "あの",
		"ない", "ある", "いる", "なる", "れる", "られる", "など",
		"ため", "こと", "もの", "よう", "ね", "よ", "な", "か", "だ",
		"て", "た", "ば", "ながら", "し",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
