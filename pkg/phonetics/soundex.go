// Package phonetics provides phonetic encoding used by the schema name
// resolver to match identifiers that sound alike ("studnets" vs "students").
package phonetics

import "strings"

// digitFor maps a letter to its American Soundex digit group.
// Vowels, H, W and Y have no group and return 0.
func digitFor(ch byte) byte {
	switch ch {
	case 'B', 'F', 'P', 'V':
		return '1'
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return '2'
	case 'D', 'T':
		return '3'
	case 'L':
		return '4'
	case 'M', 'N':
		return '5'
	case 'R':
		return '6'
	}
	return 0
}

// Encode returns the 4-character American Soundex code for word: the first
// letter verbatim (upper-cased) followed by exactly three digits, zero-padded.
// Adjacent letters that map to the same digit are collapsed into one.
// The classic H/W separator rule is intentionally not applied.
// Encode("") returns "".
func Encode(word string) string {
	word = strings.ToUpper(strings.TrimSpace(word))
	if word == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteByte(word[0])

	prev := digitFor(word[0])
	for i := 1; i < len(word) && sb.Len() < 4; i++ {
		ch := word[i]
		if ch < 'A' || ch > 'Z' {
			prev = 0
			continue
		}
		d := digitFor(ch)
		if d == 0 {
			prev = 0
			continue
		}
		if d != prev {
			sb.WriteByte(d)
		}
		prev = d
	}

	code := sb.String()
	for len(code) < 4 {
		code += "0"
	}
	return code
}
