// Package localfile implements the local-disk helpers of spec §4.9:
// streaming file checksums, checksum-verified copy, the process-wide
// disk-full flag, and ignore-aware directory removal.
package localfile

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"os"

	"github.com/deltasync/deltasync/internal/logger"
)

var l = logger.New("localfile")

// CopyBufferSize is the chunk size streamed through SHA-1, matching
// the reference client's PSYNC_COPY_BUFFER_SIZE (also blockmatch's
// scan buffer floor).
const CopyBufferSize = 1 << 20

// ErrPermFail is returned for any condition spec §4.9 classifies as a
// non-retryable failure: the file is gone, unreadable, or doesn't
// match what the caller expected.
var ErrPermFail = errors.New("localfile: permanent failure")

// Checksum streams path through SHA-1 and returns its hex digest and
// size. A missing or unreadable file is ErrPermFail, matching
// local_checksum's contract.
func Checksum(path string) (hexDigest string, size uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, ErrPermFail
	}
	defer f.Close()

	h := sha1.New()
	buf := make([]byte, CopyBufferSize)
	n, err := io.CopyBuffer(h, f, buf)
	if err != nil {
		return "", 0, ErrPermFail
	}
	return hex.EncodeToString(h.Sum(nil)), uint64(n), nil
}
