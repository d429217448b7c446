package verify

import (
	"crypto/md5" //nolint:gosec // MD5 is the digest the remote host publishes.
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrSizeMismatch is returned when the file size differs from the expected value.
	ErrSizeMismatch = errors.New("file size mismatch")
	// ErrChecksumMismatch is returned when the computed digest differs from the expected one.
	ErrChecksumMismatch = errors.New("file checksum mismatch")
)

// Options describes the expectations a file is checked against.
// Integrity is best-effort: the remote host may omit either value,
// and an absent expectation is simply not checked.
type Options struct {
	// ExpectedSizeBytes is the expected file size, or nil to skip the size check.
	ExpectedSizeBytes *int64
	// ExpectedChecksum is the expected hex MD5 digest, or empty to skip the digest check.
	ExpectedChecksum string
}

// File checks the file at path against the provided expectations.
// The file is read sequentially exactly once; there are no other side effects.
func File(path string, opts Options) error {
	if opts.ExpectedSizeBytes == nil && opts.ExpectedChecksum == "" {
		return nil
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := md5.New() //nolint:gosec // See package note on the digest choice.

	size, err := io.Copy(hasher, file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	if opts.ExpectedSizeBytes != nil && size != *opts.ExpectedSizeBytes {
		return fmt.Errorf("%w: got %d bytes, expected %d", ErrSizeMismatch, size, *opts.ExpectedSizeBytes)
	}

	if opts.ExpectedChecksum != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(actual, opts.ExpectedChecksum) {
			return fmt.Errorf("%w: got %s, expected %s", ErrChecksumMismatch, actual, opts.ExpectedChecksum)
		}
	}

	return nil
}

// FileChecksum returns the hex MD5 digest of the file at path.
func FileChecksum(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := md5.New() //nolint:gosec // See package note on the digest choice.

	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
