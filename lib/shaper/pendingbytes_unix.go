//go:build linux || darwin

package shaper

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// PendingBytes reports how many bytes are buffered, unread, on conn's
// socket via the SIOCINQ ioctl — the reference client's
// psync_socket_pendingdata_buf.
func PendingBytes(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("shaper: connection does not expose a raw fd")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var ctrlErr error
	err = raw.Control(func(fd uintptr) {
		n, ctrlErr = unix.IoctlGetInt(int(fd), unix.SIOCINQ)
	})
	if err != nil {
		return 0, err
	}
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return n, nil
}
