// Package rangeplan folds the block matcher's per-block decisions into
// the minimal ordered range list a downloader consumes (spec §4.4).
package rangeplan

import (
	"github.com/deltasync/deltasync/lib/blockmatch"
)

// RangeType mirrors blockmatch.ActionType but belongs to the planner's
// own output contract, independent of the matcher's internal state.
type RangeType int

const (
	Transfer RangeType = iota
	Copy
)

// Range is one contiguous span of the reconstructed file.
type Range struct {
	Type RangeType
	Off  uint64
	Len  uint64
	Src  string // candidate path; only meaningful when Type == Copy
}

// FullTransfer is the plan used whenever no candidate scanning
// happened at all: no candidates supplied or a PERMFAIL from the
// checksum fetch (spec §4.4 special cases). The deltasyncd plan command
// also uses it on a server filesize mismatch; planner.Plan instead
// reports that case as TEMPFAIL with no ranges.
func FullTransfer(filesize uint64) []Range {
	return []Range{{Type: Transfer, Off: 0, Len: filesize}}
}

// Build walks actions once, coalescing runs of the same decision into
// ranges. A new range starts whenever the type changes, or the type is
// Copy and either the source differs or the previous range doesn't
// end exactly where this block's source bytes begin.
func Build(actions []blockmatch.Action, files []string, filesize uint64, blocksize uint32) []Range {
	if len(actions) == 0 {
		return FullTransfer(filesize)
	}

	var ranges []Range
	var cur Range
	started := false

	for i, a := range actions {
		bl := blockLen(i, len(actions), filesize, blocksize)

		var next Range
		switch a.Type {
		case blockmatch.Transfer:
			next = Range{Type: Transfer, Off: uint64(i) * uint64(blocksize), Len: bl}
		case blockmatch.Copy:
			next = Range{Type: Copy, Off: a.SrcOff, Len: bl, Src: files[a.SrcIdx]}
		}

		if started && cur.Type == next.Type && sameSource(cur, next) && cur.Off+cur.Len == next.Off {
			cur.Len += bl
			continue
		}
		if started {
			ranges = append(ranges, cur)
		}
		cur = next
		started = true
	}
	return append(ranges, cur)
}

func sameSource(a, b Range) bool {
	if a.Type != Copy {
		return true
	}
	return a.Src == b.Src
}

func blockLen(i, n int, filesize uint64, blocksize uint32) uint64 {
	if i != n-1 {
		return uint64(blocksize)
	}
	last := filesize % uint64(blocksize)
	if last == 0 {
		return uint64(blocksize)
	}
	return last
}
