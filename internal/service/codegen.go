package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// PairingCodeAlphabet holds the 32 characters a code may use: uppercase
// letters and digits without 0, O, 1 and I.
const PairingCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var alphabetSize = big.NewInt(int64(len(PairingCodeAlphabet)))

// CodeGenerator draws uniformly random pairing codes. It does not check the
// store; callers retry on insert conflicts.
type CodeGenerator struct {
	length int
}

func NewCodeGenerator(length int) *CodeGenerator {
	return &CodeGenerator{length: length}
}

func (g *CodeGenerator) Length() int {
	return g.length
}

func (g *CodeGenerator) Generate() (string, error) {
	code := make([]byte, g.length)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		code[i] = PairingCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// ValidCode reports whether code is canonical: the configured length and
// only alphabet characters.
func (g *CodeGenerator) ValidCode(code string) bool {
	if len(code) != g.length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(PairingCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// NormalizeCode turns user input such as " abc-defg" into canonical form.
func NormalizeCode(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DisplayCode splits a code in two groups for reading off a TV,
// e.g. ABCDEFG -> ABC-DEFG.
func DisplayCode(code string) string {
	if len(code) < 6 {
		return code
	}
	mid := len(code) / 2
	return code[:mid] + "-" + code[mid:]
}
