package service

import "unicode"

const minPasswordLength = 8

// CheckPasswordStrength enforces the credential policy: at least eight
// characters with a lowercase letter, an uppercase letter, a digit and a
// symbol. Anything that is not a letter or digit counts as a symbol.
func CheckPasswordStrength(password string) error {
	var lower, upper, digit, symbol bool
	count := 0
	for _, r := range password {
		count++
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsSpace(r):
		default:
			symbol = true
		}
	}
	if count < minPasswordLength || !lower || !upper || !digit || !symbol {
		return ErrWeakCredential
	}
	return nil
}
