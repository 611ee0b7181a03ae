// Package dna rewrites Crusader Kings III character DNA so the recessive
// half of every gene matches the dominant half, which makes a portrait
// breed true when the character is used as a parent in-game.
package dna

import (
	"errors"
	"regexp"
	"strings"
)

// Error message text is surfaced verbatim in the editor and matched by
// users' tooling; do not reword.
var (
	ErrNoGenesSection   = errors.New("Could not find 'genes' section in input")
	ErrUnbalancedBraces = errors.New("Could not find closing brace for 'genes' section")
)

var (
	genesOpenRe = regexp.MustCompile(`genes\s*=\s*\{`)

	// Color genes carry four ints: dominant pair then recessive pair.
	colorGeneRe = regexp.MustCompile(`(hair_color|skin_color|eye_color)=\{\s*(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s*\}`)

	// Morph genes carry two quoted template/value pairs.
	pairGeneRe = regexp.MustCompile(`\{\s*"([^"]+)"\s+(\d+)\s+"([^"]+)"\s+(\d+)\s*\}`)
)

// locate returns the byte span [start, end) of the genes block, from the
// start of the `genes` keyword through its matching closing brace.
func locate(text string) (int, int, error) {
	m := genesOpenRe.FindStringIndex(text)
	if m == nil {
		return 0, 0, ErrNoGenesSection
	}

	depth := 0
	for i := m[1] - 1; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return m[0], i + 1, nil
			}
		}
	}
	return 0, 0, ErrUnbalancedBraces
}

func duplicateColorGenes(inner string) string {
	return colorGeneRe.ReplaceAllString(inner, "${1}={ ${2} ${3} ${2} ${3} }")
}

func duplicatePairGenes(inner string) string {
	return pairGeneRe.ReplaceAllString(inner, `{ "${1}" ${2} "${1}" ${2} }`)
}

// Duplicate copies the dominant half of every gene in the genes block over
// the recessive half and returns the whole document with the rewritten
// block spliced in place. Text outside the block is untouched. Entries that
// do not match a known gene shape are left as they are.
//
// The second quoted pair of a morph gene is overwritten by the first; that
// loss is the point of the operation.
func Duplicate(text string) (string, error) {
	start, end, err := locate(text)
	if err != nil {
		return "", err
	}

	block := text[start:end]
	open := strings.IndexByte(block, '{')
	inner := block[open+1 : len(block)-1]

	inner = duplicateColorGenes(inner)
	inner = duplicatePairGenes(inner)

	var b strings.Builder
	b.Grow(len(text))
	b.WriteString(text[:start])
	b.WriteString("genes={")
	b.WriteString(inner)
	b.WriteString("}")
	b.WriteString(text[end:])
	return b.String(), nil
}

// Validate reports whether the text contains a well-formed genes block.
// The message is empty when valid, otherwise the locate error text.
func Validate(text string) (bool, string) {
	if strings.TrimSpace(text) == "" {
		return false, "DNA text is empty"
	}
	if _, _, err := locate(text); err != nil {
		return false, err.Error()
	}
	return true, ""
}
