package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows a later
// change of algorithm without colliding with stored hashes.
const (
	DomainInstructions = "restbridge/instructions/v1"
	DomainFilter       = "restbridge/filter/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InstructionHash identifies the arguments of a sync procedure call.
// Two attempts with the same procedure and semantically equal arguments
// share a hash, which lets the journal spot repeated submissions.
func InstructionHash(procedure string, args map[string]any) (string, error) {
	data, err := Marshal(map[string]any{
		"procedure": procedure,
		"args":      args,
	})
	if err != nil {
		return "", fmt.Errorf("InstructionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInstructions, data), nil
}

// FilterHash identifies a compiled filter sent to target.
func FilterHash(target string, wire map[string]any) (string, error) {
	data, err := Marshal(map[string]any{
		"target": target,
		"wire":   wire,
	})
	if err != nil {
		return "", fmt.Errorf("FilterHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFilter, data), nil
}

// MustFilterHash is like FilterHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFilterHash(target string, wire map[string]any) string {
	h, err := FilterHash(target, wire)
	if err != nil {
		panic(err)
	}
	return h
}
