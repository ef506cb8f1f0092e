package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deltasync/deltasync/lib/localcache"
	"github.com/deltasync/deltasync/lib/localfile"
	"github.com/deltasync/deltasync/lib/netapi"
)

func TestFinalizeMovesFileWhenRemoteChecksumMatches(t *testing.T) {
	dir := t.TempDir()
	tmpPath := writeFile(t, dir, "tmp", []byte("reconstructed content"))
	destPath := filepath.Join(dir, "dest")

	localHex, localSize, err := localfile.Checksum(tmpPath)
	require.NoError(t, err)

	cache := localcache.NewMemStore()
	call := func(ctx context.Context, method string, params map[string]string) (map[string]interface{}, error) {
		require.Equal(t, "checksumfile", method)
		return map[string]interface{}{
			"result":   uint64(0),
			"size":     localSize,
			"checksum": localHex,
		}, nil
	}

	res, err := Finalize(context.Background(), call, cache, nil, nil, "auth", 1, tmpPath, destPath)
	require.NoError(t, err)
	require.Equal(t, netapi.OK, res)

	got, err := os.ReadFile(destPath)
	require.NoError(t, err)
	require.Equal(t, "reconstructed content", string(got))

	// the digest learned from the API call must now be cached.
	hex, ok, err := cache.Lookup(localHex, localSize)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, localHex, hex)
}

func TestFinalizeRejectsWhenRemoteChecksumDiffers(t *testing.T) {
	dir := t.TempDir()
	tmpPath := writeFile(t, dir, "tmp", []byte("reconstructed content"))
	destPath := filepath.Join(dir, "dest")

	call := func(ctx context.Context, method string, params map[string]string) (map[string]interface{}, error) {
		return map[string]interface{}{
			"result":   uint64(0),
			"size":     uint64(21),
			"checksum": "0000000000000000000000000000000000000000",
		}, nil
	}

	res, err := Finalize(context.Background(), call, localcache.NewMemStore(), nil, nil, "auth", 1, tmpPath, destPath)
	require.Error(t, err)
	require.Equal(t, netapi.PermFail, res)

	_, err = os.Stat(destPath)
	require.True(t, os.IsNotExist(err))
}

func TestFinalizePropagatesAPIResult(t *testing.T) {
	dir := t.TempDir()
	tmpPath := writeFile(t, dir, "tmp", []byte("content"))
	destPath := filepath.Join(dir, "dest")

	call := func(ctx context.Context, method string, params map[string]string) (map[string]interface{}, error) {
		return map[string]interface{}{"result": uint64(2003)}, nil
	}

	res, err := Finalize(context.Background(), call, nil, nil, nil, "auth", 1, tmpPath, destPath)
	require.NoError(t, err)
	require.Equal(t, netapi.PermFail, res)
}
