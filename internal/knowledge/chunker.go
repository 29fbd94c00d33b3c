package knowledge

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// splitSentences breaks text into sentence units on terminal punctuation
// followed by whitespace. Abbreviations ("e.g.", "Dr.") and decimals stay
// intact. Whitespace runs are normalized to single spaces first.
func splitSentences(text string) []string {
	text = whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var sentences []string
	start := 0
	for i := 1; i < len(runes); i++ {
		if runes[i] != ' ' || !sentenceEndsAt(runes, i) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start:i])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// sentenceEndsAt reports whether the space at index i terminates a sentence.
func sentenceEndsAt(runes []rune, i int) bool {
	p := runes[i-1]
	if p != '.' && p != '!' && p != '?' {
		return false
	}
	// Inner-period abbreviations: "e.g.", "i.e.", "U.S.A."
	if i >= 4 && isWordRune(runes[i-4]) && runes[i-3] == '.' && isWordRune(runes[i-2]) {
		return false
	}
	// Honorific-style abbreviations: "Dr.", "Mr.", "St."
	if i >= 3 && unicode.IsUpper(runes[i-3]) && unicode.IsLower(runes[i-2]) && p == '.' {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// chunkText greedily packs sentence units into chunks of at most maxChars
// characters. Each new chunk re-includes the trailing sentences that cover
// overlapChars characters of the previous chunk. A single sentence longer
// than maxChars is emitted as its own chunk rather than split.
func chunkText(text string, maxChars, overlapChars int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		var current []string
		size := 0
		j := i
		for j < len(sentences) {
			add := len(sentences[j])
			if size > 0 {
				add++ // joining space
			}
			if size > 0 && size+add > maxChars {
				break
			}
			current = append(current, sentences[j])
			size += add
			j++
			if size > maxChars {
				// Oversize single sentence; close the chunk immediately.
				break
			}
		}
		chunks = append(chunks, strings.Join(current, " "))
		if j >= len(sentences) {
			break
		}

		next := j
		if overlapChars > 0 {
			covered := 0
			for next > i && covered < overlapChars {
				covered += len(sentences[next-1]) + 1
				next--
			}
		}
		// Always move forward even when the overlap would swallow the whole
		// previous chunk.
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return chunks
}
