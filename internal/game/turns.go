// Package game holds the rules of Saym: what a legal turn looks like and
// when a turn ends the game. Everything here is a pure function of its
// arguments.
package game

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxWordLength is exclusive: a sanitized word must be shorter than this.
const MaxWordLength = 25

// Sanitize keeps letters, digits and whitespace, collapsing every run of
// whitespace into a single space. Case is preserved.
func Sanitize(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	inSpace := false
	for _, r := range word {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			inSpace = false
		}
	}
	return b.String()
}

// Normalize is the form used for every comparison between words.
func Normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(Sanitize(word)))
}

// IsValidWord reports whether word survives sanitization with some content
// and stays under MaxWordLength.
func IsValidWord(word string) bool {
	sanitized := Sanitize(word)
	if strings.TrimSpace(sanitized) == "" {
		return false
	}
	return utf8.RuneCountInString(sanitized) < MaxWordLength
}

// IsLead reports whether a submission with these counts opens a new round.
func IsLead(mine, opponent []string) bool {
	return len(mine) == len(opponent)
}

// IsResponse reports whether a submission with these counts answers the
// opponent's pending word.
func IsResponse(mine, opponent []string) bool {
	return len(mine) == len(opponent)-1
}

func IsValidTurn(word string, mine, opponent []string) bool {
	if !IsValidWord(word) {
		return false
	}
	return IsLead(mine, opponent) || IsResponse(mine, opponent)
}

func IsWinningTurn(word string, mine, opponent []string) bool {
	if !IsValidTurn(word, mine, opponent) || !IsResponse(mine, opponent) {
		return false
	}
	return Normalize(word) == Normalize(opponent[len(opponent)-1])
}
