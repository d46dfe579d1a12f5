package textstats

import (
	"strings"
	"unicode/utf8"
)

// Stats holds the quality metrics derived from a piece of text.
type Stats struct {
	TextLength         int
	UniqueWords        int
	InformationDensity float64
}

// Compute counts code points and distinct lowercased whitespace-delimited tokens.
func Compute(text string) Stats {
	length := utf8.RuneCountInString(text)
	unique := UniqueWords(text)
	return Stats{
		TextLength:         length,
		UniqueWords:        unique,
		InformationDensity: Density(unique, length),
	}
}

func UniqueWords(text string) int {
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		seen[word] = struct{}{}
	}
	return len(seen)
}

// Density returns uniqueWords / textLength, or 0 for empty text.
func Density(uniqueWords, textLength int) float64 {
	if textLength == 0 {
		return 0
	}
	return float64(uniqueWords) / float64(textLength)
}

// Chunk is one window of a longer text; positions are rune offsets.
type Chunk struct {
	Text  string
	Start int
	End   int
}

// Split cuts text into overlapping windows of size runes.
func Split(text string, size, overlap int) []Chunk {
	if size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	runes := []rune(text)
	var chunks []Chunk
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{Text: string(runes[i:end]), Start: i, End: end})
		if end == len(runes) {
			break
		}
		i += size - overlap
	}
	return chunks
}
