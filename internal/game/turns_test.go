package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain word", "apple", "apple"},
		{"keeps case", "Apple", "Apple"},
		{"keeps trailing space", "apple ", "apple "},
		{"collapses runs", "big \t\n  apple", "big apple"},
		{"drops punctuation", "a.p-p!l'e?", "apple"},
		{"keeps digits", "route 66", "route 66"},
		{"only symbols", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestIsValidWord(t *testing.T) {
	assert.True(t, IsValidWord("apple"))
	assert.True(t, IsValidWord(strings.Repeat("a", MaxWordLength-1)))
	assert.False(t, IsValidWord(strings.Repeat("a", MaxWordLength)))
	assert.False(t, IsValidWord("   "))
	assert.False(t, IsValidWord("?!"))
	assert.False(t, IsValidWord(""))
}

func TestIsValidTurn(t *testing.T) {
	tests := []struct {
		name     string
		mine     []string
		opponent []string
		want     bool
	}{
		{"first lead", nil, nil, true},
		{"respond", nil, []string{"apple"}, true},
		{"lead next round", []string{"a"}, []string{"b"}, true},
		{"already leading", []string{"a"}, nil, false},
		{"two behind", nil, []string{"a", "b"}, false},
		{"two ahead", []string{"a", "b"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidTurn("pear", tt.mine, tt.opponent))
		})
	}
	assert.False(t, IsValidTurn("  ", nil, nil))
}

func TestIsWinningTurn(t *testing.T) {
	tests := []struct {
		name     string
		word     string
		mine     []string
		opponent []string
		want     bool
	}{
		{"exact match", "apple", nil, []string{"apple"}, true},
		{"trailing space", "apple ", nil, []string{"apple"}, true},
		{"case differs", "Apple", nil, []string{"apple"}, true},
		{"punctuation ignored", "apple!", []string{"x"}, []string{"y", "APPLE"}, true},
		{"different word", "pear", nil, []string{"apple"}, false},
		{"matches older word only", "apple", []string{"x"}, []string{"apple", "pear"}, false},
		{"leading move never wins", "apple", []string{"apple"}, []string{"apple"}, false},
		{"invalid word", "!!", nil, []string{"!!"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWinningTurn(tt.word, tt.mine, tt.opponent))
		})
	}
}

func TestAlternatingTurnsKeepGap(t *testing.T) {
	var one, two []string
	words := []string{"sun", "moon", "star", "sky", "cloud", "rain"}
	for i, w := range words {
		if i%2 == 0 {
			assert.True(t, IsValidTurn(w, one, two))
			one = append(one, w)
		} else {
			assert.True(t, IsValidTurn(w, two, one))
			two = append(two, w)
		}
		gap := len(one) - len(two)
		assert.Contains(t, []int{0, 1}, gap)
	}
}
