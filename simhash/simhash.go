// Package simhash fingerprints the structure of an HTML document so that two
// snapshots of a page can be compared cheaply. Two documents built from the
// same template land within a few bits of each other regardless of their text.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// shingleSize is the number of consecutive element tokens hashed together.
const shingleSize = 3

// SameStructureThreshold is the largest Hamming distance at which two DOM
// fingerprints are treated as the same page template.
const SameStructureThreshold = 3

// OfTokens computes a 64-bit SimHash over tokens using FNV-64a per token.
// It returns 0 for no tokens.
func OfTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := range 64 {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i, v := range vector {
		if v > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// OfDOM fingerprints the element sequence of htmlStr. Each element becomes a
// token of its tag name, id and classes ("ul#browsable", "pre.verbatim"), and
// tokens are hashed as overlapping shingles. Text content is ignored.
func OfDOM(htmlStr string) uint64 {
	tokens := elementTokens(htmlStr)
	if len(tokens) < shingleSize {
		return OfTokens(tokens)
	}

	shingles := make([]string, 0, len(tokens)-shingleSize+1)
	for i := 0; i+shingleSize <= len(tokens); i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+shingleSize], " "))
	}
	return OfTokens(shingles)
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// SameStructure reports whether two non-zero DOM fingerprints are within
// SameStructureThreshold bits.
func SameStructure(a, b uint64) bool {
	if a == 0 || b == 0 {
		return false
	}
	return Distance(a, b) <= SameStructureThreshold
}

// elementTokens walks htmlStr with the tokenizer and returns one token per
// start or self-closing tag, in document order.
func elementTokens(htmlStr string) []string {
	z := html.NewTokenizer(strings.NewReader(htmlStr))
	var tokens []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tokens
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			tokens = append(tokens, elementToken(tok))
		}
	}
}

func elementToken(tok html.Token) string {
	var b strings.Builder
	b.WriteString(tok.Data)
	for _, a := range tok.Attr {
		switch a.Key {
		case "id":
			if a.Val != "" {
				b.WriteString("#" + a.Val)
			}
		case "class":
			for _, c := range strings.Fields(a.Val) {
				b.WriteString("." + c)
			}
		}
	}
	return b.String()
}
