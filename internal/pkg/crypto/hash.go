// Package crypto provides hashing utilities for stored content.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// SHA256Hex computes the SHA-256 hash of data and returns it hex-encoded.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashingReader wraps an io.Reader and computes a SHA-256 checksum of
// everything read through it. Use Sum after the stream is fully consumed.
type HashingReader struct {
	r    io.Reader
	hash io.Writer
	sum  func() []byte
	n    int64
}

// NewHashingReader wraps r with SHA-256 checksumming.
func NewHashingReader(r io.Reader) *HashingReader {
	h := sha256.New()
	return &HashingReader{
		r:    io.TeeReader(r, h),
		hash: h,
		sum:  func() []byte { return h.Sum(nil) },
	}
}

// Read implements io.Reader.
func (h *HashingReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	h.n += int64(n)
	return n, err
}

// Sum returns the hex-encoded SHA-256 checksum of the bytes read so far.
func (h *HashingReader) Sum() string {
	return hex.EncodeToString(h.sum())
}

// BytesRead returns the number of bytes read through the reader.
func (h *HashingReader) BytesRead() int64 {
	return h.n
}

// VerifyHex compares a hex-encoded SHA-256 checksum against data.
func VerifyHex(data []byte, expected string) error {
	actual := SHA256Hex(data)
	if actual != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}
