package retrieval

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-ego/gse"
)

// KeywordExtractor produces the distinct content-bearing tokens of a query
// using search-mode segmentation (short sub-words included, like a search
// engine indexer would cut them).
type KeywordExtractor struct {
	seg gse.Segmenter
}

func NewKeywordExtractor() (*KeywordExtractor, error) {
	var seg gse.Segmenter
	if err := seg.LoadDict(); err != nil {
		return nil, err
	}
	return &KeywordExtractor{seg: seg}, nil
}

// Extract returns the distinct tokens of more than one code point,
// preserving first-seen order. Whitespace and pure-punctuation tokens are
// discarded.
func (k *KeywordExtractor) Extract(query string) []string {
	tokens := k.seg.CutSearch(query, true)

	seen := make(map[string]struct{}, len(tokens))
	var keywords []string
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if utf8.RuneCountInString(tok) <= 1 {
			continue
		}
		if !containsLetterOrDigit(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}

func containsLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
