package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmpty(t *testing.T) {
	res := Validate("")
	assert.False(t, res.Valid)
	assert.Equal(t, 0, res.Score)
}

func TestValidateScoring(t *testing.T) {
	tests := []struct {
		name  string
		pw    string
		score int
		valid bool
	}{
		{"lower only, short", "abcdefg", 1, false},
		{"lower and digit, short", "abc1234", 2, false},
		{"mixed case and digit, exactly 8", "Abcdef12", 4, true},
		{"all five checks", "Abcdef1!", 5, true},
		{"long lower and digits, no case mix", "abcdefgh123", 3, true},
		{"score three but under length floor", "Ab1", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.pw)
			assert.Equal(t, tt.score, res.Score, "score")
			assert.Equal(t, tt.valid, res.Valid, "valid")
		})
	}
}

func TestShortPasswordNeverValid(t *testing.T) {
	// Upper+lower+digit+symbol but under 8 characters: score 4, still
	// rejected by the length floor.
	res := Validate("Ab1!")
	assert.Equal(t, 4, res.Score)
	assert.False(t, res.Valid)
}

func TestDenyListRejectsCommonPasswords(t *testing.T) {
	for _, pw := range []string{"password123", "Password123", "QWERTY123", "welcome1"} {
		res := Validate(pw)
		assert.False(t, res.Valid, pw)
		assert.Equal(t, 1, res.Score, pw)
	}
}

func TestDenyListBoundary(t *testing.T) {
	// One character off the deny-list entry passes through to scoring.
	res := Validate("password124")
	assert.True(t, res.Valid)
	assert.Equal(t, 3, res.Score)
}

func TestValidateIsDeterministic(t *testing.T) {
	first := Validate("Tr0ub4dor&3")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Validate("Tr0ub4dor&3"))
	}
}
