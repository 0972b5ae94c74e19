package repositories

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "fileshare_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// SQLite 单写者，串行化连接避免并发测试报 database is locked
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.File{}))
	return db
}

func int64Ptr(v int64) *int64 {
	return &v
}

func seedFile(t *testing.T, repo FileRepository, token string, maxDownloads *int64, expiresAt time.Time) *models.File {
	t.Helper()
	file := &models.File{
		OwnerID:      1,
		FileName:     "report.pdf",
		Token:        token,
		Size:         1024,
		OssBucket:    "uploads",
		OssKey:       "shares/" + token + "/report.pdf",
		MaxDownloads: maxDownloads,
		ExpiresAt:    expiresAt,
	}
	require.NoError(t, repo.Create(context.Background(), file))
	return file
}

func TestCreateRejectsDuplicateToken(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))
	expires := time.Now().Add(time.Hour)

	seedFile(t, repo, "tok-dup", nil, expires)

	dup := &models.File{
		OwnerID:   2,
		FileName:  "other.txt",
		Token:     "tok-dup",
		OssBucket: "uploads",
		OssKey:    "shares/tok-dup/other.txt",
		ExpiresAt: expires,
	}
	err := repo.Create(context.Background(), dup)
	assert.ErrorIs(t, err, xerr.ErrTokenConflict)
}

func TestFindByTokenNotFound(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))

	_, err := repo.FindByToken(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, xerr.ErrShareNotFound)
}

func TestConsumeDownloadCountsAndExhausts(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()
	file := seedFile(t, repo, "tok-limit2", int64Ptr(2), now.Add(time.Hour))

	res, err := repo.ConsumeDownload(ctx, file.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.File.DownloadCount)
	assert.False(t, res.Exhausted)

	res, err = repo.ConsumeDownload(ctx, file.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.File.DownloadCount)
	assert.True(t, res.Exhausted, "最后一个名额被消耗时应报告耗尽")

	_, err = repo.ConsumeDownload(ctx, file.ID, now)
	assert.ErrorIs(t, err, xerr.ErrShareExhausted)
}

func TestConsumeDownloadUnlimited(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()
	file := seedFile(t, repo, "tok-unlimited", nil, now.Add(time.Hour))

	for i := 0; i < 20; i++ {
		res, err := repo.ConsumeDownload(ctx, file.ID, now)
		require.NoError(t, err)
		assert.False(t, res.Exhausted)
	}

	got, err := repo.FindByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.DownloadCount)
}

func TestConsumeDownloadExpired(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))
	now := time.Now()
	file := seedFile(t, repo, "tok-expired", nil, now.Add(-time.Minute))

	_, err := repo.ConsumeDownload(context.Background(), file.ID, now)
	assert.ErrorIs(t, err, xerr.ErrShareExpired)
}

func TestConsumeDownloadExpiryBoundaryInclusive(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))
	now := time.Now().Truncate(time.Second)
	file := seedFile(t, repo, "tok-boundary", nil, now)

	// 过期时刻本身即视为过期
	_, err := repo.ConsumeDownload(context.Background(), file.ID, now)
	assert.ErrorIs(t, err, xerr.ErrShareExpired)
}

func TestConsumeDownloadConcurrentNeverOversells(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))
	now := time.Now()
	file := seedFile(t, repo, "tok-race", int64Ptr(3), now.Add(time.Hour))

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ConsumeDownload(context.Background(), file.ID, now)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, exhausted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, xerr.ErrShareExhausted):
			exhausted++
		default:
			t.Errorf("意外的核销错误: %v", err)
		}
	}
	assert.Equal(t, 3, succeeded, "成功核销次数必须等于名额上限")
	assert.Equal(t, attempts-3, exhausted)

	got, err := repo.FindByID(context.Background(), file.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.DownloadCount)
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))
	ctx := context.Background()
	file := seedFile(t, repo, "tok-del", nil, time.Now().Add(time.Hour))

	require.NoError(t, repo.Delete(ctx, file.ID))
	// 重复删除不报错
	require.NoError(t, repo.Delete(ctx, file.ID))

	_, err := repo.FindByID(ctx, file.ID)
	assert.ErrorIs(t, err, xerr.ErrShareNotFound)
}

func TestDeleteIfNotServableGuardsLiveShares(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	live := seedFile(t, repo, "tok-live", int64Ptr(5), now.Add(time.Hour))
	expired := seedFile(t, repo, "tok-dead", nil, now.Add(-time.Hour))

	deleted, err := repo.DeleteIfNotServable(ctx, live.ID, now)
	require.NoError(t, err)
	assert.False(t, deleted, "仍可下载的记录不应被清理删除")

	deleted, err = repo.DeleteIfNotServable(ctx, expired.ID, now)
	require.NoError(t, err)
	assert.True(t, deleted)

	// 额度耗尽后同样可删
	for i := 0; i < 5; i++ {
		_, err := repo.ConsumeDownload(ctx, live.ID, now)
		require.NoError(t, err)
	}
	deleted, err = repo.DeleteIfNotServable(ctx, live.ID, now)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestFindExpiredOrExhausted(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	seedFile(t, repo, "tok-ok", int64Ptr(3), now.Add(time.Hour))
	expired := seedFile(t, repo, "tok-exp", nil, now.Add(-time.Minute))
	used := seedFile(t, repo, "tok-used", int64Ptr(1), now.Add(time.Hour))
	_, err := repo.ConsumeDownload(ctx, used.ID, now)
	require.NoError(t, err)

	files, err := repo.FindExpiredOrExhausted(ctx, now)
	require.NoError(t, err)

	tokens := make([]string, 0, len(files))
	for _, f := range files {
		tokens = append(tokens, f.Token)
	}
	assert.ElementsMatch(t, []string{expired.Token, used.Token}, tokens)
}

func TestFindAllByOwnerIDExcludesExpired(t *testing.T) {
	repo := NewDBFileRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	seedFile(t, repo, "tok-a", nil, now.Add(time.Hour))
	seedFile(t, repo, "tok-b", nil, now.Add(-time.Hour))

	files, err := repo.FindAllByOwnerID(ctx, 1, now)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "tok-a", files[0].Token)
}
