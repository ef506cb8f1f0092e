// Package planner ties the checksum fetcher, block matcher, and range
// planner together into the single top-level operation a caller needs:
// given a remote file's id and size plus an ordered list of local
// candidate files, produce the list of ranges to transfer or copy to
// reconstruct it.
package planner

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/deltasync/deltasync/lib/blockmatch"
	"github.com/deltasync/deltasync/lib/checksum"
	"github.com/deltasync/deltasync/lib/netapi"
	"github.com/deltasync/deltasync/lib/rangeplan"
)

// prefetchWindow is how much of the next candidate's head is warmed
// into the OS page cache while the current candidate is still being
// scanned. Scanning itself stays strictly sequential (ordering decides
// "first match wins", spec §5); this only hides the next file's
// open+first-read latency behind the current scan's CPU work.
const prefetchWindow = 64 * 1024

// warmCandidate reads the first prefetchWindow bytes of path to prime
// the page cache for the scan that will shortly open it for real. Any
// failure is silent: a candidate that can't even be warmed will simply
// be re-opened (and, if still unreadable, silently skipped) by Scan
// itself, per spec §7.
func warmCandidate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	buf := make([]byte, prefetchWindow)
	_, _ = f.Read(buf)
	return nil
}

// ChecksumSource resolves the remote file's checksum table. netapi.Fetcher
// (or netapi.FetchChecksumTable bound to its arguments) satisfies this;
// tests can supply a fixed table directly.
type ChecksumSource func(ctx context.Context, fileid uint64) (*checksum.Table, netapi.Result, error)

// Plan resolves fileid's checksum table, scans candidates in order
// against it, and folds the resulting action table into ranges.
//
// Candidates are scanned in the order given; the first to match a
// target block wins and the block is not reconsidered by later
// candidates. A candidate that can't be read contributes no matches
// and is not an error.
//
// If there are no candidates or the checksum fetch reports PermFail,
// Plan returns a single full-file Transfer range and OK (nothing useful
// to compare against). If the fetched table's FileSize disagrees with
// filesize, Plan returns no ranges and TempFail, since that signals
// metadata drift that may clear up on retry.
func Plan(ctx context.Context, fetch ChecksumSource, fileid uint64, filesize uint64, candidates []string) ([]rangeplan.Range, netapi.Result, error) {
	if len(candidates) == 0 {
		return rangeplan.FullTransfer(filesize), netapi.OK, nil
	}

	table, res, err := fetch(ctx, fileid)
	if err != nil {
		return nil, netapi.TempFail, err
	}
	switch res {
	case netapi.OK:
	case netapi.PermFail:
		return rangeplan.FullTransfer(filesize), netapi.OK, nil
	default:
		return nil, res, nil
	}

	if table.FileSize != filesize {
		return nil, netapi.TempFail, nil
	}

	hash := checksum.NewHash(table)
	actions := blockmatch.NewActions(len(table.Blocks))

	var g errgroup.Group
	for src, path := range candidates {
		if src+1 < len(candidates) {
			next := candidates[src+1]
			g.Go(func() error { return warmCandidate(next) })
		}
		if err := blockmatch.Scan(path, table, hash, actions, uint32(src)); err != nil {
			return nil, netapi.TempFail, err
		}
	}
	_ = g.Wait()

	ranges := rangeplan.Build(actions, candidates, filesize, table.BlockSize)
	return ranges, netapi.OK, nil
}
