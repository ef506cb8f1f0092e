// Package blockmatch implements the candidate-file scanner of spec
// §4.3: it slides a rolling Adler-32 window over a local file one byte
// at a time, verifies any weak match with SHA-1, and records which
// blocks of the remote file can be copied from that candidate instead
// of downloaded.
package blockmatch

import (
	"crypto/sha1"
	"io"
	"os"

	"github.com/deltasync/deltasync/lib/checksum"
	"github.com/deltasync/deltasync/lib/weakhash"
)

// ActionType is the decision recorded for one block of the remote file.
type ActionType int

const (
	// Transfer means the block must be downloaded from the server.
	Transfer ActionType = iota
	// Copy means the block can be read verbatim from a local candidate.
	Copy
)

// Action is one block's current decision. Every action starts as
// Transfer; a matching candidate upgrades it to Copy exactly once.
type Action struct {
	Type   ActionType
	SrcIdx uint32
	SrcOff uint64
}

// NewActions returns a fresh all-Transfer action table for n blocks.
func NewActions(n int) []Action {
	return make([]Action, n)
}

// DefaultCopyBufferSize is the minimum scan-buffer size, matching the
// reference client's PSYNC_COPY_BUFFER_SIZE. It must be a multiple of
// every blocksize this client will see (blocksize is a server-chosen
// power of two of at least 4KiB, so a 1MiB buffer always qualifies).
const DefaultCopyBufferSize = 1 << 20

// Scan reads path and marks any matching blocks in actions as Copy with
// src as their source. A candidate that can't be opened or is too
// short to contain one whole block yields no matches and no error —
// per spec §7, local read errors during candidate scanning are silent.
func Scan(path string, table *checksum.Table, hash *checksum.Hash, actions []Action, src uint32) error {
	return ScanWithBuffer(path, table, hash, actions, src, DefaultCopyBufferSize)
}

// ScanWithBuffer is Scan with an explicit minimum buffer size, exposed
// for tests that want a small buffer to exercise the wraparound path.
func ScanWithBuffer(path string, table *checksum.Table, hash *checksum.Hash, actions []Action, src uint32, minBuffer int) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	blocksize := int(table.BlockSize)
	if blocksize == 0 || len(table.Blocks) == 0 {
		return nil
	}

	bufferSize := blocksize * 2
	if minBuffer > bufferSize {
		bufferSize = minBuffer
	}
	half := bufferSize / 2
	buf := make([]byte, bufferSize)

	n, rerr := io.ReadFull(f, buf[:half])
	if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
		return nil
	}
	if n < blocksize {
		return nil // too short for even one block: no match possible
	}

	var bufferLen int
	if n < half {
		bufferLen = roundUp(n, blocksize)
		zero(buf, n, bufferLen)
	} else {
		bufferLen = bufferSize
	}

	eng := weakhash.New()
	adler := eng.Reset(buf[:blocksize])

	out := 0
	in := blocksize
	bufferOffset := uint64(0)
	blockmask := blocksize - 1

	for {
		last := false
		if in&blockmask == 0 {
			if out >= bufferLen {
				out = 0
				bufferOffset += uint64(bufferSize)
			}
			switch {
			case in == bufferLen:
				if bufferLen != bufferSize {
					last = true
					break
				}
				in = 0
				rd, _ := io.ReadFull(f, buf[:half])
				if rd != half {
					if rd <= 0 {
						last = true
						break
					}
					bufferLen = roundUp(rd, blocksize)
					zero(buf, rd, bufferLen)
				}
			case in == half:
				rd, _ := io.ReadFull(f, buf[half:bufferSize])
				if rd != half {
					if rd <= 0 {
						last = true
						break
					}
					bufferLen = half + roundUp(rd, blocksize)
					zero(buf[half:], rd, bufferLen-half)
				}
			}
		}

		if hash.HasAdler(adler) {
			var sum [checksum.SHA1Len]byte
			if out < in {
				sum = sha1.Sum(buf[out : out+blocksize])
			} else {
				h := sha1.New()
				h.Write(buf[out:bufferSize])
				h.Write(buf[:in])
				copy(sum[:], h.Sum(nil))
			}
			if idx := hash.HasAdlerAndSHA1(adler, sum); idx != 0 {
				applyMatch(hash, table, actions, idx, src, bufferOffset+uint64(out))
			}
		}

		if last {
			return nil
		}
		adler = eng.Roll(buf[in])
		out++
		in++
	}
}

// applyMatch marks every still-Transfer block in idx's same-SHA-1 chain
// as Copy from (src, fileOffset), then evicts the chain's hash entry so
// a later candidate cannot re-match the same target block.
func applyMatch(hash *checksum.Hash, table *checksum.Table, actions []Action, idx uint32, src uint32, fileOffset uint64) {
	head := idx - 1
	cur := head
	changed := false
	for {
		if actions[cur].Type == Transfer {
			actions[cur] = Action{Type: Copy, SrcIdx: src, SrcOff: fileOffset}
			changed = true
		}
		next := table.Next[cur]
		if next == 0 {
			break
		}
		cur = next - 1
	}
	if changed {
		hash.Remove(table.Blocks[head].Adler, table.Blocks[head].SHA1)
	}
}

func roundUp(n, blocksize int) int {
	return (n + blocksize - 1) / blocksize * blocksize
}

func zero(buf []byte, from, to int) {
	for i := from; i < to; i++ {
		buf[i] = 0
	}
}
