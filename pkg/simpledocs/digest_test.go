package simpledocs_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-docs/pkg/simpledocs"
)

func TestDigestReader(t *testing.T) {
	content := []byte("the quick brown fox")
	want := sha256.Sum256(content)

	digest := simpledocs.NewDigestReader(bytes.NewReader(content))

	read, err := io.ReadAll(digest)
	require.NoError(t, err)

	assert.Equal(t, content, read)
	assert.Equal(t, hex.EncodeToString(want[:]), digest.HexDigest())
	assert.Equal(t, int64(len(content)), digest.BytesRead())
}

func TestDigestReaderSmallChunks(t *testing.T) {
	content := strings.Repeat("abc123", 1000)
	digest := simpledocs.NewDigestReader(strings.NewReader(content))

	// Drain through a small buffer to cross Read boundaries.
	buf := make([]byte, 7)
	for {
		_, err := digest.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, simpledocs.HashBytes([]byte(content)), digest.HexDigest())
	assert.Equal(t, int64(len(content)), digest.BytesRead())
}

func TestHashBytes(t *testing.T) {
	// Hash covers content bytes only; the empty input has the well-known
	// sha256 empty digest.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		simpledocs.HashBytes(nil))

	assert.NotEqual(t, simpledocs.HashBytes([]byte("a")), simpledocs.HashBytes([]byte("b")))
}
