package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStorage(t *testing.T) *LocalStorageService {
	t.Helper()
	svc, err := NewLocalStorageService(&config.StorageConfig{LocalBasePath: t.TempDir()})
	require.NoError(t, err)
	return svc
}

func TestLocalStoragePutGetRoundTrip(t *testing.T) {
	svc := newTestLocalStorage(t)
	ctx := context.Background()
	content := []byte("hello fileshare")

	put, err := svc.PutObject(ctx, "uploads", "shares/tok123/report.txt", bytes.NewReader(content), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), put.Size)

	got, err := svc.GetObject(ctx, "uploads", "shares/tok123/report.txt")
	require.NoError(t, err)
	defer got.Reader.Close()

	data, err := io.ReadAll(got.Reader)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, int64(len(content)), got.Size)
}

func TestLocalStorageGetMissingObject(t *testing.T) {
	svc := newTestLocalStorage(t)

	_, err := svc.GetObject(context.Background(), "uploads", "shares/none/missing.bin")
	assert.ErrorIs(t, err, xerr.ErrObjectNotFound)
}

func TestLocalStorageRemoveIsIdempotent(t *testing.T) {
	svc := newTestLocalStorage(t)
	ctx := context.Background()

	_, err := svc.PutObject(ctx, "uploads", "shares/tok/a.txt", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveObject(ctx, "uploads", "shares/tok/a.txt"))
	// 再删一次不应报错
	require.NoError(t, svc.RemoveObject(ctx, "uploads", "shares/tok/a.txt"))

	exists, err := svc.ObjectExists(ctx, "uploads", "shares/tok/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorageRejectsEscapingPath(t *testing.T) {
	svc := newTestLocalStorage(t)

	_, err := svc.GetObject(context.Background(), "uploads", "../../etc/passwd")
	assert.ErrorIs(t, err, xerr.ErrFileNameInvalid)
}

func TestLocalStorageQuotaLeavesNoPartialObject(t *testing.T) {
	svc := newTestLocalStorage(t)
	ctx := context.Background()

	payload := bytes.Repeat([]byte("a"), 1024)
	metered := NewMeteredReader(bytes.NewReader(payload), 100, nil)

	_, err := svc.PutObject(ctx, "uploads", "shares/tok/big.bin", metered, "application/octet-stream")
	assert.ErrorIs(t, err, xerr.ErrFileTooLarge)
	assert.True(t, metered.Exceeded())

	exists, err := svc.ObjectExists(ctx, "uploads", "shares/tok/big.bin")
	require.NoError(t, err)
	assert.False(t, exists, "超限上传不应留下部分对象")
}

func TestMeteredReaderProgressCallback(t *testing.T) {
	var last int64
	metered := NewMeteredReader(strings.NewReader("0123456789"), 0, func(read int64) { last = read })

	data, err := io.ReadAll(metered)
	require.NoError(t, err)
	assert.Equal(t, 10, len(data))
	assert.Equal(t, int64(10), last)
	assert.Equal(t, int64(10), metered.BytesRead())
	assert.False(t, metered.Exceeded())
}
