package localfile

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
)

// CopyIfChecksumMatches implements spec §4.9's copy_if_checksum_matches:
// it stats src, verifies its size against expectedSize, streams it
// through SHA-1 into dst+".partial", fsyncs, compares the digest
// against expectedHex, and only then atomically renames the partial
// into place. Any mismatch — size, digest, or an I/O fault along the
// way — deletes the partial file and returns ErrPermFail; dst is left
// untouched in that case.
func CopyIfChecksumMatches(src, dst, expectedHex string, expectedSize uint64) error {
	info, err := os.Stat(src)
	if err != nil {
		return ErrPermFail
	}
	if uint64(info.Size()) != expectedSize {
		return ErrPermFail
	}

	partial := dst + ".partial"
	if err := streamCopy(src, partial, expectedHex); err != nil {
		os.Remove(partial)
		return err
	}
	if err := os.Rename(partial, dst); err != nil {
		os.Remove(partial)
		return ErrPermFail
	}
	return nil
}

func streamCopy(src, partial, expectedHex string) error {
	in, err := os.Open(src)
	if err != nil {
		return ErrPermFail
	}
	defer in.Close()

	out, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ErrPermFail
	}
	defer out.Close()

	h := sha1.New()
	w := io.MultiWriter(out, h)
	buf := make([]byte, CopyBufferSize)
	if _, err := io.CopyBuffer(w, in, buf); err != nil {
		return ErrPermFail
	}
	if err := out.Sync(); err != nil {
		return ErrPermFail
	}

	got := hex.EncodeToString(h.Sum(nil))
	if got != expectedHex {
		l.Warnln("checksum mismatch copying", src, "to", partial)
		return ErrPermFail
	}
	return nil
}
