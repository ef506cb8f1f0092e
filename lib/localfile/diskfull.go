package localfile

import (
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"time"
)

// SleepOnDiskFull is how long WriteAllCheckOverQuota backs off after
// hitting ENOSPC/EDQUOT, matching the reference client's
// PSYNC_SLEEP_ON_DISK_FULL.
const SleepOnDiskFull = 2 * time.Second

var diskFull int32

// DiskFullNotifier is told whenever the process-wide disk-full flag
// actually flips (set is idempotent: repeated ENOSPC doesn't re-notify).
type DiskFullNotifier interface {
	SetDiskFull(full bool)
}

var diskFullNotifier DiskFullNotifier

func SetDiskFullNotifier(n DiskFullNotifier) { diskFullNotifier = n }

func IsDiskFull() bool { return atomic.LoadInt32(&diskFull) != 0 }

func setDiskFull(full bool) {
	var want int32
	if full {
		want = 1
	}
	prev := atomic.SwapInt32(&diskFull, want)
	if (prev != 0) == full {
		return
	}
	if diskFullNotifier != nil {
		diskFullNotifier.SetDiskFull(full)
	}
}

// WriteAllCheckOverQuota writes buf to f, flipping the process-wide
// disk-full flag on ENOSPC/EDQUOT and sleeping SleepOnDiskFull before
// reporting failure. It does not retry a short or failed write.
func WriteAllCheckOverQuota(f *os.File, buf []byte) error {
	_, err := f.Write(buf)
	if err == nil {
		setDiskFull(false)
		return nil
	}
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		setDiskFull(true)
		time.Sleep(SleepOnDiskFull)
	}
	return err
}
