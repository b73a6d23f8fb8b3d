package simpledocs

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// DigestReader computes a sha256 digest over a byte stream as it is read, so
// hashing an upload costs no extra pass over the content. The digest covers
// content bytes only; file name and MIME type never influence it.
type DigestReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

// NewDigestReader wraps r.
func NewDigestReader(r io.Reader) *DigestReader {
	return &DigestReader{r: r, h: sha256.New()}
}

func (d *DigestReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if n > 0 {
		d.h.Write(p[:n])
		d.n += int64(n)
	}
	return n, err
}

// HexDigest returns the lowercase hex digest of everything read so far.
func (d *DigestReader) HexDigest() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// BytesRead returns the number of content bytes consumed.
func (d *DigestReader) BytesRead() int64 {
	return d.n
}

// HashBytes returns the lowercase hex sha256 digest of b. Convenience for
// callers that already hold the content in memory (tests, small payloads).
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
