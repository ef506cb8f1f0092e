// Package netapi implements the checksum-blob fetcher (spec §4.5) and
// the HTTP/1.0 mini-client it uses to pull that blob from a mirror
// host (spec §4.6), plus the server result-code mapping of spec §7.
package netapi

import (
	"fmt"

	"github.com/deltasync/deltasync/internal/logger"
)

var l = logger.New("netapi")

// Result is the three-class outcome of spec §7: OK, TempFail (retry
// later) or PermFail (give up this item). It is deliberately not a Go
// error — functions that fail for ordinary Go reasons (bad arguments,
// I/O faults outside the modeled protocol) still return error.
type Result int

const (
	OK Result = iota
	TempFail
	PermFail
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case TempFail:
		return "TEMPFAIL"
	case PermFail:
		return "PERMFAIL"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// StatusNotifier and TimerNotifier are the external collaborators spec
// §7's side effects act on: a process-wide auth status flag and a
// timer that collapses its retry interval on suspected connectivity
// loss. Both are optional; a nil receiver is simply not notified.
type StatusNotifier interface {
	SetAuthBad()
}

type TimerNotifier interface {
	NotifyException()
}

// MapAPIResult classifies a server "result" code per spec §7's table,
// firing the documented side effects along the way.
func MapAPIResult(code uint64, status StatusNotifier, timer TimerNotifier) Result {
	switch code {
	case 0:
		return OK
	case 2000:
		if status != nil {
			status.SetAuthBad()
		}
		if timer != nil {
			timer.NotifyException()
		}
		return TempFail
	case 2003, 2005, 2009:
		return PermFail
	case 2007:
		l.Warnln("server refused: delete root folder")
		return PermFail
	default:
		return TempFail
	}
}
