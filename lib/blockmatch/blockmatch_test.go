package blockmatch

import (
	"crypto/sha1"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deltasync/deltasync/lib/checksum"
	"github.com/deltasync/deltasync/lib/weakhash"
)

// buildTable computes the server-side checksum table for data, as if
// data were the remote file being synced to.
func buildTable(data []byte, blocksize int) *checksum.Table {
	n := checksum.BlockCount(uint64(len(data)), uint32(blocksize))
	t := &checksum.Table{
		FileSize:  uint64(len(data)),
		BlockSize: uint32(blocksize),
		Blocks:    make([]checksum.BlockChecksum, n),
		Next:      make([]uint32, n),
	}
	for i := uint32(0); i < n; i++ {
		start := int(i) * blocksize
		end := start + blocksize
		var window []byte
		if end > len(data) {
			// Last block is short: zero-pad to a full blocksize so its
			// checksum matches what the rolling scanner computes at EOF.
			window = make([]byte, blocksize)
			copy(window, data[start:])
		} else {
			window = data[start:end]
		}
		t.Blocks[i] = checksum.BlockChecksum{
			SHA1:  sha1.Sum(window),
			Adler: weakhash.Block(window),
		}
	}
	return t
}

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestScanIdenticalFile(t *testing.T) {
	const bs = 64
	data := make([]byte, 10*bs)
	for i := range data {
		data[i] = byte(i * 7)
	}
	dir := t.TempDir()
	candidate := writeTemp(t, dir, "candidate", data)

	table := buildTable(data, bs)
	hash := checksum.NewHash(table)
	actions := NewActions(len(table.Blocks))

	require.NoError(t, ScanWithBuffer(candidate, table, hash, actions, 0, 256))

	// byte(i*7) repeats every 256 bytes (4 blocks), so blocks 4-9 share a
	// SHA-1 chain with blocks 0-3 and are copied from the first offset
	// where that content appears.
	for i, a := range actions {
		require.Equalf(t, Copy, a.Type, "block %d", i)
		require.Equal(t, uint64((i%4)*bs), a.SrcOff)
		require.Equal(t, uint32(0), a.SrcIdx)
	}
}

func TestScanShiftedFile(t *testing.T) {
	const bs = 64
	prefix := make([]byte, bs)
	for i := range prefix {
		prefix[i] = 0xAA
	}
	body := make([]byte, 9*bs)
	for i := range body {
		body[i] = byte(i * 3)
	}
	target := append(append([]byte{}, prefix...), body...)
	suffix := []byte("tail-bytes-not-in-target")
	candidateData := append(append([]byte{}, body...), suffix...)

	dir := t.TempDir()
	candidate := writeTemp(t, dir, "candidate", candidateData)

	table := buildTable(target, bs)
	hash := checksum.NewHash(table)
	actions := NewActions(len(table.Blocks))

	require.NoError(t, ScanWithBuffer(candidate, table, hash, actions, 0, 256))

	require.Equal(t, Transfer, actions[0].Type, "prefix block must not match")
	for i := 1; i < len(actions); i++ {
		require.Equalf(t, Copy, actions[i].Type, "body block %d should match", i)
	}
}

func TestScanLastPartialBlock(t *testing.T) {
	const bs = 64
	data := make([]byte, 3*bs+17)
	for i := range data {
		data[i] = byte(i)
	}
	dir := t.TempDir()
	candidate := writeTemp(t, dir, "candidate", data)

	table := buildTable(data, bs)
	require.Len(t, table.Blocks, 4)

	hash := checksum.NewHash(table)
	actions := NewActions(len(table.Blocks))
	require.NoError(t, ScanWithBuffer(candidate, table, hash, actions, 0, 256))

	for i, a := range actions {
		require.Equalf(t, Copy, a.Type, "block %d", i)
	}
}

func TestScanUnreadableCandidateYieldsNoMatches(t *testing.T) {
	const bs = 64
	data := make([]byte, 4*bs)
	table := buildTable(data, bs)
	hash := checksum.NewHash(table)
	actions := NewActions(len(table.Blocks))

	require.NoError(t, Scan(filepath.Join(t.TempDir(), "does-not-exist"), table, hash, actions, 0))
	for _, a := range actions {
		require.Equal(t, Transfer, a.Type)
	}
}

func TestScanFirstCandidateWins(t *testing.T) {
	const bs = 64
	data := make([]byte, 2*bs)
	for i := range data {
		data[i] = byte(i)
	}
	dir := t.TempDir()
	first := writeTemp(t, dir, "first", data)
	second := writeTemp(t, dir, "second", data)

	table := buildTable(data, bs)
	hash := checksum.NewHash(table)
	actions := NewActions(len(table.Blocks))

	require.NoError(t, ScanWithBuffer(first, table, hash, actions, 0, 256))
	require.NoError(t, ScanWithBuffer(second, table, hash, actions, 1, 256))

	for _, a := range actions {
		require.Equal(t, Copy, a.Type)
		require.Equal(t, uint32(0), a.SrcIdx, "first candidate to match should keep ownership")
	}
}
