package workflows

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// transliterations maps characters outside [a-z] that appear in member names
// to their ASCII spelling. German umlauts expand per DIN 5007-2.
var transliterations = map[rune]string{
	'ä': "ae", 'ö': "oe", 'ü': "ue", 'ß': "ss",
	'æ': "ae", 'ø': "oe", 'å': "aa",
	'á': "a", 'à': "a", 'â': "a", 'ã': "a",
	'é': "e", 'è': "e", 'ê': "e", 'ë': "e",
	'í': "i", 'ì': "i", 'î': "i", 'ï': "i",
	'ó': "o", 'ò': "o", 'ô': "o", 'õ': "o",
	'ú': "u", 'ù': "u", 'û': "u",
	'ç': "c", 'ñ': "n", 'ý': "y",
}

// DeriveCompanyEmail builds the canonical company address
// "first.last@<domain>" from a member's name. Names are lowercased,
// transliterated to ASCII and multi-word parts joined with hyphens, so
// "Sönke Müller Meier" at start-berlin.com becomes
// "soenke.mueller-meier@start-berlin.com".
func DeriveCompanyEmail(firstName, lastName, domain string) string {
	return fmt.Sprintf("%s.%s@%s", emailPart(firstName), emailPart(lastName), domain)
}

func emailPart(name string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	for i, word := range words {
		words[i] = transliterate(word)
	}

	return strings.Join(words, "-")
}

func transliterate(word string) string {
	var builder strings.Builder

	for _, r := range word {
		if replacement, ok := transliterations[r]; ok {
			builder.WriteString(replacement)
			continue
		}

		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// passwordCharset omits visually ambiguous characters (I, l, O, 0, 1).
const passwordCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789@$!%*#?&"

const passwordLength = 15

// GenerateRandomPassword returns a 15-character initial password drawn from
// a crypto-grade source.
func GenerateRandomPassword() (string, error) {
	password := make([]byte, passwordLength)
	max := big.NewInt(int64(len(passwordCharset)))

	for i := range password {
		index, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}

		password[i] = passwordCharset[index.Int64()]
	}

	return string(password), nil
}

// NewWorkflowID derives a stable, human-sortable workflow run identifier
// from the requester's email and the current time.
func NewWorkflowID(email string, now time.Time) string {
	timestamp := now.Unix()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", email, timestamp)))

	return fmt.Sprintf("wf_%d_%s", timestamp, hex.EncodeToString(sum[:])[:8])
}
