package shaper

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAccountantAveragesOverWindow(t *testing.T) {
	a := NewAccountant()
	base := int64(1000)
	for i := int64(0); i < AverageWindowSeconds; i++ {
		a.Account(base+i, 1000)
	}
	// One more second's worth rolls the oldest slot out of the window.
	a.Account(base+AverageWindowSeconds, 1000)
	require.Equal(t, uint64(1000), a.Speed())
}

func TestAccountantSameSecondAccumulates(t *testing.T) {
	a := NewAccountant()
	a.Account(42, 100)
	a.Account(42, 50)
	require.Equal(t, uint64(150), a.BytesThisSec(42))
	require.Equal(t, uint64(0), a.BytesThisSec(43))
}

func fakeConnPair(t *testing.T) (net.Conn, net.Conn) {
	c, s := net.Pipe()
	t.Cleanup(func() { c.Close(); s.Close() })
	return c, s
}

func TestDownloaderPassthroughWhenCapUnset(t *testing.T) {
	client, server := fakeConnPair(t)
	go server.Write([]byte("hello"))

	a := NewAccountant()
	d := &Downloader{Accountant: a, Cap: func() int64 { return -1 }}
	buf := make([]byte, 5)
	n, err := d.Read(client, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, uint64(5), a.BytesThisSec(time.Now().Unix()))
}

func TestDownloaderHardCapLimitsReadSize(t *testing.T) {
	client, server := fakeConnPair(t)
	go server.Write([]byte("0123456789"))

	a := NewAccountant()
	now := time.Now().Unix()
	a.Account(now, 8) // already used 8 of a 10-byte cap this second

	var slept time.Duration
	d := &Downloader{
		Accountant: a,
		Cap:        func() int64 { return 10 },
		Sleep:      func(d time.Duration) { slept += d },
	}
	buf := make([]byte, 10)
	n, err := d.Read(client, buf)
	require.NoError(t, err)
	require.Equal(t, 2, n, "must only read the 2 remaining bytes under the cap")
}

func TestUploaderHardCapLimitsWriteSize(t *testing.T) {
	client, server := fakeConnPair(t)
	read := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 32)
		n, _ := server.Read(buf)
		read <- buf[:n]
	}()

	a := NewAccountant()
	now := time.Now().Unix()
	a.Account(now, 6)

	u := &Uploader{Accountant: a, Cap: func() int64 { return 10 }}
	n, err := u.Write(client, []byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, 4, n, "must only write the 4 remaining bytes under the cap")
	require.Equal(t, "0123", string(<-read))
}
