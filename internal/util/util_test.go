package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("batch-one"))
	b := Fingerprint([]byte("batch-two"))

	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
	require.Equal(t, a, Fingerprint([]byte("batch-one")))
}

func TestFingerprintFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,kind\n"), 0600))

	fp, err := FingerprintFile(path)
	require.NoError(t, err)
	require.Equal(t, Fingerprint([]byte("id,kind\n")), fp)

	_, err = FingerprintFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
