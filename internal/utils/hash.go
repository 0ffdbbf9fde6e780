package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
)

const (
	codeFloor = 100000
	codeSpan  = 900000
)

// GenerateNumericCode returns a six digit code drawn uniformly from
// 100000..999999. Codes never start with zero.
func GenerateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeFloor, 10), nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the part after the last '@', or "" when there is none.
func EmailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}
