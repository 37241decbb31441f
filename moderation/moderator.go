package moderation

import (
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks forbidden words in message text before a post is built.
// Matching runs over a normalized view of the text (lowercased, leet
// speak folded, punctuation and spacing stripped) so thin obfuscation
// like "b.a.d" or "b4d" still matches, while the replacement is applied
// to the original runes to preserve the message layout.
type Moderator struct {
	machine *goahocorasick.Machine
	mask    rune
}

func NewModerator(words []string, mask rune) (Moderator, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		normalized, _ := normalize([]rune(word), false)
		patterns[i] = normalized
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{machine: machine, mask: mask}, nil
}

// Censor returns the text with every forbidden span masked, plus the
// normalized form of each word that matched.
func (m *Moderator) Censor(text string) (string, []string) {
	original := []rune(text)
	normalized, origIdx := normalize(original, true)
	if len(normalized) == 0 {
		return text, nil
	}

	spans := m.machine.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return text, nil
	}

	var found []string
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		found = append(found, string(span.Word))
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			original[i] = m.mask
		}
	}
	return string(original), found
}

// DetectLanguage tags the text with an ISO 639-1 code, for moderation
// logs only.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	return info.Lang.Iso6391()
}

// normalize lowercases, folds leet speak, and strips noise runes.
// When tracked, the returned index slice maps every normalized rune back
// to its position in the input.
func normalize(input []rune, tracked bool) ([]rune, []int) {
	normalized := make([]rune, 0, len(input))
	var origIdx []int
	if tracked {
		origIdx = make([]int, 0, len(input))
	}
	for i, r := range input {
		folded := foldLeet(r)
		if isNoise(folded) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(folded))
		if tracked {
			origIdx = append(origIdx, i)
		}
	}
	return normalized, origIdx
}

// foldLeet maps common leet speak characters back to their standard
// alphabet counterparts.
func foldLeet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
