package ipcstatus

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func pipeClient(t *testing.T, handle func(conn net.Conn)) *Client {
	t.Helper()
	server, client := net.Pipe()
	go func() {
		defer server.Close()
		handle(server)
	}()
	return &Client{
		Addr: "test",
		Dial: func(string) (net.Conn, error) { return client, nil },
	}
}

func reply(replyType uint32, value string) []byte {
	buf := make([]byte, headerSize+len(value))
	binary.LittleEndian.PutUint32(buf[:4], replyType)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(len(buf)))
	copy(buf[12:], value)
	return buf
}

func TestQuerySendsFramedRequest(t *testing.T) {
	var gotType uint32
	var gotPath string
	c := pipeClient(t, func(conn net.Conn) {
		header := make([]byte, headerSize)
		_, err := conn.Read(header)
		require.NoError(t, err)
		gotType = binary.LittleEndian.Uint32(header[:4])
		length := binary.LittleEndian.Uint64(header[4:12])

		body := make([]byte, length-headerSize)
		_, err = conn.Read(body)
		require.NoError(t, err)
		gotPath = string(body)

		conn.Write(reply(replyTypeInSync, ""))
	})

	state, err := Query(c, "/home/user/file.txt")
	require.NoError(t, err)
	require.Equal(t, StateInSync, state)
	require.Equal(t, msgTypeQuery, gotType)
	require.Equal(t, "/home/user/file.txt", gotPath)
}

func TestQueryInProgress(t *testing.T) {
	c := pipeClient(t, func(conn net.Conn) {
		drainRequest(conn)
		conn.Write(reply(replyTypeInProg, ""))
	})
	state, err := Query(c, "/x")
	require.NoError(t, err)
	require.Equal(t, StateInProgress, state)
}

func TestQueryUnknownReplyTypeIsInvalid(t *testing.T) {
	c := pipeClient(t, func(conn net.Conn) {
		drainRequest(conn)
		conn.Write(reply(99, ""))
	})
	state, err := Query(c, "/x")
	require.NoError(t, err)
	require.Equal(t, StateInvalid, state)
}

func TestQueryShortReplyIsError(t *testing.T) {
	c := pipeClient(t, func(conn net.Conn) {
		drainRequest(conn)
		conn.Write([]byte{1, 2, 3})
	})
	_, err := Query(c, "/x")
	require.Error(t, err)
}

func drainRequest(conn net.Conn) {
	buf := make([]byte, 4096)
	conn.Read(buf)
}
