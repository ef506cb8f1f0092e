// Package checksum implements the on-wire checksum blob (spec §3, §6)
// and the open-addressed Adler-32 → SHA-1 hash used to look blocks up
// by their weak checksum (spec §4.2). Both are exercised by exactly one
// planner call and are never shared across calls (spec §5).
package checksum

import (
	"crypto/sha1"
	"encoding/binary"
	"io"
)

// SHA1Len is the length of the strong hash carried by each block.
const SHA1Len = sha1.Size // 20

// headerSize is ChecksumHeader's wire size: filesize(8) + blocksize(4) + reserved(12).
const headerSize = 24

// blockWire is one BlockChecksum's wire size: sha1(20) + adler(4 LE).
const blockWire = SHA1Len + 4

// MaxAdlerCollisions bounds how far an insertion will probe past its
// ideal slot before the block is dropped from the hash (spec §4.2).
const MaxAdlerCollisions = 64

// BlockChecksum describes exactly one logical block of the remote file.
type BlockChecksum struct {
	SHA1  [SHA1Len]byte
	Adler uint32
}

// Header is the wire prefix of the blob served by a mirror.
type Header struct {
	FileSize  uint64
	BlockSize uint32
}

// DecodeHeader reads a ChecksumHeader from r. The reserved bytes are
// skipped; no field is validated.
func DecodeHeader(r io.Reader) (Header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return Header{
		FileSize:  binary.LittleEndian.Uint64(buf[0:8]),
		BlockSize: binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// EncodeHeader writes hdr in wire format, reserved bytes zeroed. Used by
// tests and by anything standing in for the mirror side of the wire
// contract.
func EncodeHeader(w io.Writer, hdr Header) error {
	var buf [headerSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], hdr.FileSize)
	binary.LittleEndian.PutUint32(buf[8:12], hdr.BlockSize)
	_, err := w.Write(buf[:])
	return err
}

// BlockCount derives blockcnt = ceil(filesize/blocksize); it is never
// itself transmitted.
func BlockCount(filesize uint64, blocksize uint32) uint32 {
	if blocksize == 0 {
		return 0
	}
	return uint32((filesize + uint64(blocksize) - 1) / uint64(blocksize))
}

// Table is the in-memory ChecksumTable: the decoded block array plus
// the same-SHA-1 chain links built alongside the Hash (spec §3, §4.2).
type Table struct {
	FileSize  uint64
	BlockSize uint32
	Blocks    []BlockChecksum
	// Next[i] chains blocks with identical SHA-1; 0 means end-of-chain,
	// otherwise a 1-based index into Blocks.
	Next []uint32
}

// DecodeTable reads blockcnt BlockChecksum entries following hdr.
func DecodeTable(r io.Reader, hdr Header) (*Table, error) {
	n := BlockCount(hdr.FileSize, hdr.BlockSize)
	t := &Table{
		FileSize:  hdr.FileSize,
		BlockSize: hdr.BlockSize,
		Blocks:    make([]BlockChecksum, n),
		Next:      make([]uint32, n),
	}
	if n == 0 {
		return t, nil
	}
	buf := make([]byte, blockWire*int(n))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		off := int(i) * blockWire
		copy(t.Blocks[i].SHA1[:], buf[off:off+SHA1Len])
		t.Blocks[i].Adler = binary.LittleEndian.Uint32(buf[off+SHA1Len : off+blockWire])
	}
	return t, nil
}

// EncodeBlocks writes blocks in wire format, one after another. Used by
// tests that synthesize a checksum blob to feed through DecodeTable.
func EncodeBlocks(w io.Writer, blocks []BlockChecksum) error {
	buf := make([]byte, blockWire)
	for _, b := range blocks {
		copy(buf[:SHA1Len], b.SHA1[:])
		binary.LittleEndian.PutUint32(buf[SHA1Len:], b.Adler)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
