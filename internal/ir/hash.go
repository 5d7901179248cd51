package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainConstraint = "ruleidx/constraint/v1"
	DomainExpr       = "ruleidx/expr/v1"
)

// exprIDLen is the number of hex characters kept for expression ids.
const exprIDLen = 16

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content hash of a compiled constraint.
//
// Index ids are excluded, so compiling the same constraint twice yields the
// same fingerprint even though each compilation draws fresh ids.
func Fingerprint(cc *CompiledConstraint) (string, error) {
	canonical, err := MarshalCanonical(EncodeCompiled(cc, false))
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConstraint, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(cc *CompiledConstraint) string {
	fp, err := Fingerprint(cc)
	if err != nil {
		panic(err)
	}
	return fp
}

// ExprID returns a short stable identifier for a constraint expression,
// derived from its printed text.
func ExprID(e Expr) string {
	return hashWithDomain(DomainExpr, []byte(Print(e)))[:exprIDLen]
}
