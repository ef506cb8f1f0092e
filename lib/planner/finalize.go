package planner

import (
	"context"

	"github.com/deltasync/deltasync/lib/localcache"
	"github.com/deltasync/deltasync/lib/localfile"
	"github.com/deltasync/deltasync/lib/netapi"
)

// Finalize closes the loop Plan opens: once the range plan built from a
// checksum table has been executed into a reconstructed temp file,
// Finalize independently verifies that file against the server's own
// whole-file checksum before moving it into place, rather than trusting
// the block-level reconstruction alone.
//
// It computes tmpPath's local digest, resolves fileid's expected
// whole-file checksum through netapi.FileChecksum (cache-first, falling
// back to a checksumfile API call), and feeds that expectedHex straight
// into localfile.CopyIfChecksumMatches. cache may be nil to always hit
// the API.
func Finalize(ctx context.Context, call netapi.APICaller, cache localcache.Cache, status netapi.StatusNotifier, timer netapi.TimerNotifier, auth string, fileid uint64, tmpPath, destPath string) (netapi.Result, error) {
	localHex, localSize, err := localfile.Checksum(tmpPath)
	if err != nil {
		return netapi.PermFail, err
	}

	expectedHex, expectedSize, res, err := netapi.FileChecksum(ctx, call, cache, status, timer, auth, fileid, localHex, localSize)
	if err != nil {
		return netapi.TempFail, err
	}
	if res != netapi.OK {
		return res, nil
	}

	if err := localfile.CopyIfChecksumMatches(tmpPath, destPath, expectedHex, expectedSize); err != nil {
		return netapi.PermFail, err
	}
	return netapi.OK, nil
}
