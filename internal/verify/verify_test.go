package verify

import (
	"crypto/md5" //nolint:gosec // Mirrors the digest under test.
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, size int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))

	return path
}

// TestFile_NoExpectations always succeeds when nothing is expected.
func TestFile_NoExpectations(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, 100)
	require.NoError(t, File(path, Options{}))
}

// TestFile_SizeMismatch fails when the actual size differs.
func TestFile_SizeMismatch(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, 100)

	expected := int64(99)
	err := File(path, Options{ExpectedSizeBytes: &expected})
	require.ErrorIs(t, err, ErrSizeMismatch)
}

// TestFile_ChecksumMismatch fails on a deliberately wrong digest.
func TestFile_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, 100)

	size := int64(100)
	err := File(path, Options{
		ExpectedSizeBytes: &size,
		ExpectedChecksum:  strings.Repeat("0", 32),
	})
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

// TestFile_ChecksumCaseInsensitive accepts digests regardless of hex case.
func TestFile_ChecksumCaseInsensitive(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, 100)

	sum := md5.Sum(make([]byte, 100)) //nolint:gosec // Mirrors the digest under test.
	upper := strings.ToUpper(hex.EncodeToString(sum[:]))

	require.NoError(t, File(path, Options{ExpectedChecksum: upper}))
}

// TestFileChecksum matches a digest computed independently.
func TestFileChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	sum := md5.Sum([]byte("hello")) //nolint:gosec // Mirrors the digest under test.

	got, err := FileChecksum(path)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(sum[:]), got)
}
