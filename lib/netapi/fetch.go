package netapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/deltasync/deltasync/lib/checksum"
)

// APICaller issues one binary API command (e.g. "getchecksumlink",
// "checksumfile") over a pooled connection and decodes its reply. The
// wire codec for that protocol is an external dependency per spec §1;
// this module ships no APICaller implementation, so callers supply one.
type APICaller func(ctx context.Context, method string, params map[string]string) (map[string]interface{}, error)

// GetChecksumLink calls getchecksumlink and returns the mirror hosts
// and request path for fileid, or a non-OK Result per spec §7. status
// and timer receive the side effects spec §7 documents for a bad-auth
// result or a transport exception; either may be nil.
func GetChecksumLink(ctx context.Context, call APICaller, status StatusNotifier, timer TimerNotifier, auth string, fileid uint64) ([]string, string, Result, error) {
	reply, err := call(ctx, "getchecksumlink", map[string]string{
		"auth":   auth,
		"fileid": strconv.FormatUint(fileid, 10),
	})
	if err != nil {
		if timer != nil {
			timer.NotifyException()
		}
		return nil, "", TempFail, err
	}

	code := toUint64(reply["result"])
	if code != 0 {
		return nil, "", MapAPIResult(code, status, timer), nil
	}

	hosts := toStringSlice(reply["hosts"])
	path, _ := reply["path"].(string)
	return hosts, path, OK, nil
}

// FetchChecksumTable runs the full spec §4.5 sequence: resolve mirror
// hosts via the API, then try each in order until one serves the blob.
// A nonzero API result short-circuits straight to its mapped Result
// without trying any host. Exhausting every mirror host is itself a
// network exception per spec §7 and fires timer the same as a
// transport error would.
func FetchChecksumTable(ctx context.Context, call APICaller, dial Dialer, status StatusNotifier, timer TimerNotifier, auth string, fileid uint64, fallbackHosts []string) (*checksum.Table, Result, error) {
	hosts, path, res, err := GetChecksumLink(ctx, call, status, timer, auth, fileid)
	if err != nil {
		return nil, TempFail, err
	}
	if res != OK {
		return nil, res, nil
	}
	if len(hosts) == 0 {
		hosts = fallbackHosts
	}

	var lastErr error
	for _, host := range hosts {
		table, err := fetchFromHost(ctx, dial, host, path)
		if err != nil {
			l.Debugf("mirror %s failed: %v", host, err)
			lastErr = err
			continue
		}
		return table, OK, nil
	}
	if lastErr == nil {
		lastErr = errors.New("netapi: no mirror host configured")
	}
	if timer != nil {
		timer.NotifyException()
	}
	return nil, TempFail, lastErr
}

func fetchFromHost(ctx context.Context, dial Dialer, host, path string) (*checksum.Table, error) {
	conn, err := Connect(ctx, dial, host, path, nil)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	hdr, err := checksum.DecodeHeader(conn)
	if err != nil {
		return nil, fmt.Errorf("netapi: short header read: %w", err)
	}
	table, err := checksum.DecodeTable(conn, hdr)
	if err != nil {
		return nil, fmt.Errorf("netapi: short block table read: %w", err)
	}
	return table, nil
}

type fetchResult struct {
	table *checksum.Table
	res   Result
}

// Fetcher wraps FetchChecksumTable with a singleflight group so that
// concurrent planning calls for the same fileid share one mirror
// fetch instead of racing duplicate downloads of the same blob.
type Fetcher struct {
	Call          APICaller
	Dial          Dialer
	Auth          string
	FallbackHosts []string

	// Status and Timer receive spec §7's side effects (bad-auth status,
	// connectivity-exception notification) as this fetcher's calls hit
	// them. Either may be left nil.
	Status StatusNotifier
	Timer  TimerNotifier

	sf singleflight.Group
}

func (f *Fetcher) Fetch(ctx context.Context, fileid uint64) (*checksum.Table, Result, error) {
	key := strconv.FormatUint(fileid, 10)
	v, err, _ := f.sf.Do(key, func() (interface{}, error) {
		table, res, err := FetchChecksumTable(ctx, f.Call, f.Dial, f.Status, f.Timer, f.Auth, fileid, f.FallbackHosts)
		if err != nil {
			return nil, err
		}
		return fetchResult{table: table, res: res}, nil
	})
	if err != nil {
		return nil, TempFail, err
	}
	r := v.(fetchResult)
	return r.table, r.res, nil
}

func toUint64(v interface{}) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		return uint64(n)
	case float64:
		return uint64(n)
	default:
		return 0
	}
}

func toStringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
