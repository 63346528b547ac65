package password

import (
	"strings"
	"unicode"
)

const (
	// MinLength is the hard floor on password length.
	MinLength = 8
	// MinScore is the weakest acceptable strength score.
	MinScore = 3
)

// commonPasswords is the fixed deny-list, matched case-insensitively.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"123456":      {},
	"12345678":    {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"letmein":     {},
	"welcome":     {},
	"welcome1":    {},
	"abc123":      {},
	"admin":       {},
	"iloveyou":    {},
	"monkey":      {},
	"dragon":      {},
	"sunshine":    {},
	"trustno1":    {},
}

// Result reports the outcome of a strength evaluation.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Score   int    `json:"score"`
}

// Validate evaluates password strength. Pure function: no I/O, no
// randomness, deterministic for a given input.
//
// The score counts five independent checks (length, upper, lower,
// digit, symbol). A deny-list hit invalidates regardless of score and
// forces the score to 1 so clients render it as weak.
func Validate(pw string) Result {
	if pw == "" {
		return Result{Valid: false, Message: "password is required", Score: 0}
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	score := 0
	var missing []string
	if len(pw) >= MinLength {
		score++
	} else {
		missing = append(missing, "at least 8 characters")
	}
	if hasUpper {
		score++
	} else {
		missing = append(missing, "an uppercase letter")
	}
	if hasLower {
		score++
	} else {
		missing = append(missing, "a lowercase letter")
	}
	if hasDigit {
		score++
	} else {
		missing = append(missing, "a digit")
	}
	if hasSymbol {
		score++
	} else {
		missing = append(missing, "a symbol")
	}

	if score < MinScore {
		return Result{
			Valid:   false,
			Message: "password too weak, add " + strings.Join(missing, ", "),
			Score:   score,
		}
	}

	// Redundant with the length check above, kept as a safety net so a
	// future scoring change cannot admit short passwords.
	if len(pw) < MinLength {
		return Result{
			Valid:   false,
			Message: "password must be at least 8 characters",
			Score:   score,
		}
	}

	if _, ok := commonPasswords[strings.ToLower(pw)]; ok {
		return Result{
			Valid:   false,
			Message: "password is too common, choose something less guessable",
			Score:   1,
		}
	}

	return Result{Valid: true, Message: "password accepted", Score: score}
}
