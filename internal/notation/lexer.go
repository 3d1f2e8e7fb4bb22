package notation

import (
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokNumber tokenKind = iota // run of ASCII digits
	tokPoint                   // ',' or '.'
	tokSep                     // x, X or ×
	tokAt                      // @
	tokWord                    // run of other letters (units, noise)
	tokOther
)

type token struct {
	kind  tokenKind
	text  string
	space bool // whitespace directly before the token
}

// lex splits set notation into tokens. Whitespace is dropped but remembered
// on the following token so the parser can tell "102,5" from "5, 105".
func lex(s string) []token {
	var toks []token
	space := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r):
			space = true
			i += size
			continue
		case r >= '0' && r <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j], space: space})
			i = j
		case r == ',' || r == '.':
			toks = append(toks, token{kind: tokPoint, text: string(r), space: space})
			i += size
		case isSep(r):
			toks = append(toks, token{kind: tokSep, text: string(r), space: space})
			i += size
		case r == '@':
			toks = append(toks, token{kind: tokAt, text: "@", space: space})
			i += size
		case unicode.IsLetter(r):
			j := i
			for j < len(s) {
				r2, sz := utf8.DecodeRuneInString(s[j:])
				if !unicode.IsLetter(r2) || isSep(r2) {
					break
				}
				j += sz
			}
			toks = append(toks, token{kind: tokWord, text: s[i:j], space: space})
			i = j
		default:
			toks = append(toks, token{kind: tokOther, text: string(r), space: space})
			i += size
		}
		space = false
	}
	return toks
}

func isSep(r rune) bool {
	return r == 'x' || r == 'X' || r == '×'
}
