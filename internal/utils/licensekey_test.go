package utils

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyPattern = regexp.MustCompile(`^[A-Z0-9]{4,5}(-[A-Z0-9]{4,5}){3}$`)

func TestNewLicenseKeyFormat(t *testing.T) {
	for _, segLen := range []int{4, 5} {
		key, err := NewLicenseKey(segLen)
		require.NoError(t, err)
		assert.Regexp(t, keyPattern, key)

		parts := strings.Split(key, "-")
		require.Len(t, parts, 4)
		for _, p := range parts {
			assert.Len(t, p, segLen)
		}
	}
}

func TestNewLicenseKeyClampsSegmentLength(t *testing.T) {
	for _, bad := range []int{-1, 0, 3, 6, 100} {
		key, err := NewLicenseKey(bad)
		require.NoError(t, err)
		for _, p := range strings.Split(key, "-") {
			assert.Len(t, p, 5, "out-of-range segLen %d should fall back to 5", bad)
		}
	}
}

func TestNewLicenseKeyAlphabet(t *testing.T) {
	key, err := NewLicenseKey(5)
	require.NoError(t, err)
	for _, r := range strings.ReplaceAll(key, "-", "") {
		assert.Contains(t, licenseKeyAlphabet, string(r))
	}
}

// A 20-character key has 36^20 possibilities; any collision in a small
// sample means the generator is broken, not unlucky.
func TestNewLicenseKeyNoEarlyCollisions(t *testing.T) {
	const n = 100000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		key, err := NewLicenseKey(5)
		require.NoError(t, err)
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key after %d draws: %s", i, key)
		}
		seen[key] = struct{}{}
	}
}
