//go:build !linux && !darwin

package shaper

import "net"

// PendingBytes has no portable equivalent of SIOCINQ outside
// Linux/Darwin; reporting a constant zero degrades the auto-download
// shaper to its base sleep interval instead of failing outright.
func PendingBytes(conn net.Conn) (int, error) {
	return 0, nil
}
