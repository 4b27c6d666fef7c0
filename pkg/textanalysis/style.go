package textanalysis

import (
	"math"
	"strings"
	"unicode"
)

// AnalyzeStyle returns word count and Flesch reading ease for text.
// Empty text scores 0 on both.
func AnalyzeStyle(text string) Style {
	words := Words(text)
	if len(words) == 0 {
		return Style{}
	}
	return Style{
		WordCount:   len(words),
		Readability: FleschReadingEase(text),
	}
}

// Words splits text on whitespace, the same way a word counter would.
func Words(text string) []string {
	return strings.Fields(text)
}

// FleschReadingEase computes 206.835 - 1.015*(words/sentences) - 84.6*(syllables/words),
// rounded to two decimals.
func FleschReadingEase(text string) float64 {
	words := lexicalWords(text)
	if len(words) == 0 {
		return 0
	}
	sentences := countSentences(text)
	syllables := 0
	for _, word := range words {
		syllables += CountSyllables(word)
	}

	wordsPerSentence := float64(len(words)) / float64(sentences)
	syllablesPerWord := float64(syllables) / float64(len(words))
	score := 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
	return math.Round(score*100) / 100
}

// CountSyllables estimates syllables by counting vowel groups, dropping a
// silent trailing "e". Every word has at least one syllable.
func CountSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		return 1
	}
	return count
}

// lexicalWords strips punctuation and drops tokens without letters or digits.
func lexicalWords(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	words := fields[:0]
	for _, field := range fields {
		if strings.Trim(field, "'") != "" {
			words = append(words, field)
		}
	}
	return words
}

func countSentences(text string) int {
	count := 0
	inTerminator := false
	for _, r := range text {
		terminator := r == '.' || r == '!' || r == '?'
		if terminator && !inTerminator {
			count++
		}
		inTerminator = terminator
	}
	if count == 0 {
		return 1
	}
	return count
}
