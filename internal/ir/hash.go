package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainStatement = "gqlbridge/statement/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies a statement text for logs and metrics.
// Whitespace runs collapse to one space and the text is NFC normalized,
// so reformatting a statement does not change its fingerprint.
// The result is the first 16 hex characters of the digest.
func Fingerprint(statement string) string {
	normalized := norm.NFC.String(strings.Join(strings.Fields(statement), " "))
	return hashWithDomain(DomainStatement, []byte(normalized))[:16]
}
