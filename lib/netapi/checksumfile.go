package netapi

import (
	"context"
	"strconv"

	"github.com/deltasync/deltasync/lib/localcache"
)

// checksumFieldName is the wire-reply field the server returns a whole-
// file checksum under. Spec §6 names it only as "<PSYNC_CHECKSUM>:
// hex-string"; this is the field key deltasyncd's wire codec maps that
// onto, the same way getchecksumlink's reply uses "hosts"/"path".
const checksumFieldName = "checksum"

// FileChecksum implements spec §6's checksumfile operation: it resolves
// the whole-file digest for fileid, the value CopyIfChecksumMatches
// needs as its expectedHex argument once a transfer finishes.
//
// Grounded directly on psync_get_remote_file_checksum
// (pnetlibs.c:197-248): look the (hash,size) pair up in the local
// hashchecksum cache first (a hit skips the API round-trip entirely,
// the whole point of the table); on a miss, call checksumfile, map any
// nonzero result the same way every other netapi call does, and on
// success write the freshly-learned digest back to cache before
// returning it.
func FileChecksum(ctx context.Context, call APICaller, cache localcache.Cache, status StatusNotifier, timer TimerNotifier, auth string, fileid uint64, localHash string, localSize uint64) (hexDigest string, fsize uint64, res Result, err error) {
	if cache != nil {
		if hex, ok, cerr := cache.Lookup(localHash, localSize); cerr == nil && ok {
			return hex, localSize, OK, nil
		}
	}

	reply, err := call(ctx, "checksumfile", map[string]string{
		"auth":   auth,
		"fileid": strconv.FormatUint(fileid, 10),
	})
	if err != nil {
		if timer != nil {
			timer.NotifyException()
		}
		return "", 0, TempFail, err
	}

	code := toUint64(reply["result"])
	if code != 0 {
		return "", 0, MapAPIResult(code, status, timer), nil
	}

	fsize = toUint64(reply["size"])
	hexDigest, _ = reply[checksumFieldName].(string)

	if cache != nil {
		_ = cache.Put(localHash, localSize, hexDigest)
	}
	return hexDigest, fsize, OK, nil
}
