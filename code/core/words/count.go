// Package words counts the narrative words of a text, leaving out quoted
// dialogue.
package words

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// quotePairs are the opening and closing marks of a quoted span.
var quotePairs = map[rune]rune{
	'"': '"',
	'“': '”',
	'「': '」',
}

// CountRequest is the input for counting words.
type CountRequest struct {
	Text string `json:"text"`
}

// CountResponse is the result of counting words.
type CountResponse struct {
	Words       int `json:"words"`
	Characters  int `json:"characters"`
	QuotedSpans int `json:"quoted_spans"`
	TotalWords  int `json:"total_words"`
}

// Count counts the words outside quoted spans. Characters excludes
// whitespace. An opening mark without its closing mark is counted as text.
func Count(req CountRequest) *CountResponse {
	narrative, spans := stripQuotes(req.Text)
	resp := &CountResponse{
		Words:       len(strings.Fields(narrative)),
		QuotedSpans: spans,
		TotalWords:  len(strings.Fields(req.Text)),
	}
	for _, r := range narrative {
		if !unicode.IsSpace(r) {
			resp.Characters++
		}
	}
	return resp
}

// stripQuotes removes every closed quoted span, replacing it with a space so
// the words on either side stay apart.
func stripQuotes(text string) (string, int) {
	var b strings.Builder
	b.Grow(len(text))
	spans := 0

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		closing, opens := quotePairs[r]
		if !opens {
			b.WriteRune(r)
			i += size
			continue
		}

		end := strings.IndexRune(text[i+size:], closing)
		if end < 0 {
			b.WriteRune(r)
			i += size
			continue
		}
		spans++
		b.WriteByte(' ')
		i += size + end + utf8.RuneLen(closing)
	}
	return b.String(), spans
}
