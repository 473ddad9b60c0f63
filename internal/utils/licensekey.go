package utils

import (
    "crypto/rand"
    "fmt"
    "math/big"
    "strings"
)

// licenseKeyAlphabet is the 36-character alphabet license keys are drawn
// from.  Uppercase-only keeps keys human-typable; activation lookups are
// exact-string so the alphabet is part of the wire format.
const licenseKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// licenseKeySegments is fixed at 4 groups; only the per-group length is
// configurable (4 or 5 characters depending on deployment).
const licenseKeySegments = 4

// NewLicenseKey produces a key of 4 hyphen-joined groups of segLen
// uppercase alphanumeric characters, e.g. "7K2FQ-ZZ01M-AB9XC-44TQP".
// Randomness comes from crypto/rand via uniform draws, so there is no
// modulo bias.  The generator does not guarantee uniqueness – the store's
// unique constraint on license_key is the source of truth, and the license
// service retries on collision.
func NewLicenseKey(segLen int) (string, error) {
    if segLen < 4 || segLen > 5 {
        segLen = 5
    }
    max := big.NewInt(int64(len(licenseKeyAlphabet)))
    parts := make([]string, 0, licenseKeySegments)
    var b strings.Builder
    for i := 0; i < licenseKeySegments; i++ {
        b.Reset()
        for j := 0; j < segLen; j++ {
            n, err := rand.Int(rand.Reader, max)
            if err != nil {
                return "", fmt.Errorf("license key randomness: %w", err)
            }
            b.WriteByte(licenseKeyAlphabet[n.Int64()])
        }
        parts = append(parts, b.String())
    }
    return strings.Join(parts, "-"), nil
}
