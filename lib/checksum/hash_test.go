package checksum

import (
	"bytes"
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/require"
)

func block(data string, adler uint32) BlockChecksum {
	s := sha1.Sum([]byte(data))
	return BlockChecksum{SHA1: s, Adler: adler}
}

func TestWireRoundTrip(t *testing.T) {
	hdr := Header{FileSize: 3*4096 + 17, BlockSize: 4096}
	var buf bytes.Buffer
	require.NoError(t, EncodeHeader(&buf, hdr))

	got, err := DecodeHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, hdr, got)
	require.Equal(t, uint32(4), BlockCount(hdr.FileSize, hdr.BlockSize))
}

func TestHashFindsInsertedBlocks(t *testing.T) {
	t1 := &Table{Blocks: []BlockChecksum{
		block("alpha", 111),
		block("bravo", 222),
		block("charlie", 333),
	}}
	t1.Next = make([]uint32, len(t1.Blocks))

	h := NewHash(t1)
	for _, b := range t1.Blocks {
		require.True(t, h.HasAdler(b.Adler))
		require.NotZero(t, h.HasAdlerAndSHA1(b.Adler, b.SHA1))
	}
	require.False(t, h.HasAdler(999))
}

func TestHashCollisionKeepsBothBlocks(t *testing.T) {
	// Two distinct blocks crafted to share an Adler value but differ in SHA-1.
	a := block("one", 42)
	b := block("two", 42)
	tbl := &Table{Blocks: []BlockChecksum{a, b}, Next: make([]uint32, 2)}

	h := NewHash(tbl)
	require.True(t, h.HasAdler(42))
	idxA := h.HasAdlerAndSHA1(42, a.SHA1)
	idxB := h.HasAdlerAndSHA1(42, b.SHA1)
	require.NotZero(t, idxA)
	require.NotZero(t, idxB)
	require.NotEqual(t, idxA, idxB)
}

func TestRemoveEvictsChainHead(t *testing.T) {
	a := block("one", 7)
	tbl := &Table{Blocks: []BlockChecksum{a}, Next: make([]uint32, 1)}
	h := NewHash(tbl)
	require.True(t, h.HasAdler(7))

	h.Remove(7, a.SHA1)
	require.False(t, h.HasAdler(7))
	require.Zero(t, h.HasAdlerAndSHA1(7, a.SHA1))
}

func TestRemoveRelocatesDisplacedEntry(t *testing.T) {
	// Force a genuine linear-probing collision by giving two blocks the
	// same Adler value so the second is displaced one slot forward.
	a := block("first", 5)
	b := block("second", 5)
	tbl := &Table{Blocks: []BlockChecksum{a, b}, Next: make([]uint32, 2)}
	h := NewHash(tbl)

	h.Remove(5, a.SHA1)
	// b must still be reachable after a's slot is reclaimed.
	require.NotZero(t, h.HasAdlerAndSHA1(5, b.SHA1))
}
