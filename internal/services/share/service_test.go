package share

import (
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	svc     ShareService
	repo    repositories.FileRepository
	storage storage.StorageService
	tracker *ProgressTracker
	cfg     *config.Config
	db      *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "fileshare_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.File{}))

	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type:          "local",
			LocalBasePath: t.TempDir(),
		},
		Share: config.ShareConfig{
			MaxUploadSizeBytes: 1 << 20,
			MinRetentionDays:   1,
			MaxRetentionDays:   30,
			CleanupInterval:    time.Hour,
		},
	}

	storageSvc, err := storage.NewLocalStorageService(&cfg.Storage)
	require.NoError(t, err)

	repo := repositories.NewFileRepository(db, nil)
	tracker := NewProgressTracker()
	return &testEnv{
		svc:     NewShareService(repo, storageSvc, tracker, cfg),
		repo:    repo,
		storage: storageSvc,
		tracker: tracker,
		cfg:     cfg,
		db:      db,
	}
}

func uploadReq(content string, retentionDays int, maxDownloads *int64) *UploadRequest {
	return &UploadRequest{
		FileName:      "report.txt",
		Size:          int64(len(content)),
		ContentType:   "text/plain",
		RetentionDays: retentionDays,
		MaxDownloads:  maxDownloads,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

// countBlobs 统计本地存储目录下的对象文件数
func countBlobs(t *testing.T, root string) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content := "分享内容 round trip"

	file, err := env.svc.Upload(ctx, 1, uploadReq(content, 7, nil))
	require.NoError(t, err)
	assert.NotEmpty(t, file.Token)
	assert.Equal(t, int64(len(content)), file.Size)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), file.ExpiresAt, time.Minute)

	res, err := env.svc.Download(ctx, file.Token)
	require.NoError(t, err)
	defer res.Reader.Close()

	data, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.Equal(t, int64(1), res.File.DownloadCount)
	assert.Equal(t, "text/plain", res.MimeType)
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Upload(ctx, 1, uploadReq("x", 0, nil))
	assert.ErrorIs(t, err, xerr.ErrRetentionOutOfRange)

	_, err = env.svc.Upload(ctx, 1, uploadReq("x", 31, nil))
	assert.ErrorIs(t, err, xerr.ErrRetentionOutOfRange)

	_, err = env.svc.Upload(ctx, 1, uploadReq("x", 7, int64Ptr(0)))
	assert.ErrorIs(t, err, xerr.ErrInvalidMaxDownloads)

	req := uploadReq("x", 7, nil)
	req.FileName = "../escape.txt"
	_, err = env.svc.Upload(ctx, 1, req)
	assert.NoError(t, err) // path.Base 归一为 escape.txt

	req = uploadReq("x", 7, nil)
	req.FileName = ".."
	_, err = env.svc.Upload(ctx, 1, req)
	assert.ErrorIs(t, err, xerr.ErrFileNameInvalid)
}

func TestUploadQuotaLeavesNoOrphan(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Share.MaxUploadSizeBytes = 16
	ctx := context.Background()

	_, err := env.svc.Upload(ctx, 1, uploadReq(strings.Repeat("a", 100), 7, nil))
	assert.ErrorIs(t, err, xerr.ErrFileTooLarge)

	files, err := env.svc.ListUserFiles(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, files, "超限上传不应留下分享记录")
	assert.Zero(t, countBlobs(t, env.cfg.Storage.LocalBasePath), "超限上传不应留下存储对象")
}

func TestDownloadUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Download(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, xerr.ErrShareNotFound)
}

func TestSingleUseShareRemovedAfterDownload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, 1, uploadReq("one shot", 7, int64Ptr(1)))
	require.NoError(t, err)

	res, err := env.svc.Download(ctx, file.Token)
	require.NoError(t, err)
	data, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Equal(t, "one shot", string(data))
	require.NoError(t, res.Reader.Close())

	// 关闭后整条分享消失，记录和对象都不在了
	_, err = env.svc.Download(ctx, file.Token)
	assert.ErrorIs(t, err, xerr.ErrShareNotFound)
	assert.Zero(t, countBlobs(t, env.cfg.Storage.LocalBasePath))
}

func TestExhaustedWhileLastReaderStillOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, 1, uploadReq("limited", 7, int64Ptr(3)))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := env.svc.Download(ctx, file.Token)
		require.NoError(t, err)
		_, err = io.Copy(io.Discard, res.Reader)
		require.NoError(t, err)
		require.NoError(t, res.Reader.Close())
	}

	// 第三次下载占用最后一个名额，读取器保持打开
	last, err := env.svc.Download(ctx, file.Token)
	require.NoError(t, err)

	// 最后一个名额已核销但尚未回收，第四次请求看到"次数用完"
	_, err = env.svc.Download(ctx, file.Token)
	assert.ErrorIs(t, err, xerr.ErrShareExhausted)

	_, err = io.Copy(io.Discard, last.Reader)
	require.NoError(t, err)
	require.NoError(t, last.Reader.Close())

	// 关闭后分享被回收，对新请求表现为不存在
	_, err = env.svc.Download(ctx, file.Token)
	assert.ErrorIs(t, err, xerr.ErrShareNotFound)
	assert.Zero(t, countBlobs(t, env.cfg.Storage.LocalBasePath))
}

func TestDownloadAbortStillConsumesSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, 1, uploadReq(strings.Repeat("b", 4096), 7, int64Ptr(2)))
	require.NoError(t, err)

	res, err := env.svc.Download(ctx, file.Token)
	require.NoError(t, err)
	// 只读一小段就中断，模拟客户端断开
	buf := make([]byte, 8)
	_, err = res.Reader.Read(buf)
	require.NoError(t, err)
	require.NoError(t, res.Reader.Close())

	got, err := env.repo.FindByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.DownloadCount, "中断的下载同样消耗名额")
}

func TestExpiredShareDownloadAndSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, 1, uploadReq("will expire", 7, nil))
	require.NoError(t, err)

	// 把过期时间拨回过去
	require.NoError(t, env.db.Model(&models.File{}).
		Where("id = ?", file.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err = env.svc.Download(ctx, file.Token)
	assert.ErrorIs(t, err, xerr.ErrShareExpired)

	removed, err := env.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, countBlobs(t, env.cfg.Storage.LocalBasePath))

	_, err = env.svc.Download(ctx, file.Token)
	assert.ErrorIs(t, err, xerr.ErrShareNotFound)

	// 再扫一轮没有可清理的内容，且不报错
	removed, err = env.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSweepSkipsLiveShares(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, 1, uploadReq("still alive", 7, int64Ptr(5)))
	require.NoError(t, err)

	removed, err := env.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	res, err := env.svc.Download(ctx, file.Token)
	require.NoError(t, err)
	res.Reader.Close()
}

func TestDeleteUserFileOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, 1, uploadReq("mine", 7, nil))
	require.NoError(t, err)

	err = env.svc.DeleteUserFile(ctx, 2, file.ID)
	assert.ErrorIs(t, err, xerr.ErrPermissionDenied)

	require.NoError(t, env.svc.DeleteUserFile(ctx, 1, file.ID))
	_, err = env.svc.Download(ctx, file.Token)
	assert.ErrorIs(t, err, xerr.ErrShareNotFound)
	assert.Zero(t, countBlobs(t, env.cfg.Storage.LocalBasePath))
}

// conflictRepo 包装真实仓库，让前 failures 次 Create 返回令牌冲突
type conflictRepo struct {
	repositories.FileRepository
	failures int
	calls    int
}

func (r *conflictRepo) Create(ctx context.Context, file *models.File) error {
	r.calls++
	if r.calls <= r.failures {
		return xerr.ErrTokenConflict
	}
	return r.FileRepository.Create(ctx, file)
}

func TestUploadRetriesOnTokenConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	repo := &conflictRepo{FileRepository: env.repo, failures: 1}
	svc := NewShareService(repo, env.storage, env.tracker, env.cfg)

	openCalls := 0
	req := uploadReq("retry me", 7, nil)
	req.Open = func() (io.ReadCloser, error) {
		openCalls++
		return io.NopCloser(strings.NewReader("retry me")), nil
	}

	file, err := svc.Upload(ctx, 1, req)
	require.NoError(t, err)
	assert.Equal(t, 2, openCalls, "冲突重试应重新打开上传内容")

	res, err := svc.Download(ctx, file.Token)
	require.NoError(t, err)
	defer res.Reader.Close()
	data, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Equal(t, "retry me", string(data))

	// 冲突尝试留下的对象已被回滚，只剩成功那一份
	assert.Equal(t, 1, countBlobs(t, env.cfg.Storage.LocalBasePath))
}

func TestUploadRetriesGiveUpAfterLimit(t *testing.T) {
	env := newTestEnv(t)

	repo := &conflictRepo{FileRepository: env.repo, failures: 100}
	svc := NewShareService(repo, env.storage, env.tracker, env.cfg)

	_, err := svc.Upload(context.Background(), 1, uploadReq("never", 7, nil))
	assert.ErrorIs(t, err, xerr.ErrTokenConflict)
	assert.Equal(t, maxTokenAttempts, repo.calls)
}

func TestProgressTracker(t *testing.T) {
	tracker := NewProgressTracker()

	_, err := tracker.Percent("missing")
	assert.ErrorIs(t, err, xerr.ErrUploadNotFound)

	tracker.Begin("up-1", 200)
	percent, err := tracker.Percent("up-1")
	require.NoError(t, err)
	assert.Zero(t, percent)

	tracker.Advance("up-1", 50)
	percent, err = tracker.Percent("up-1")
	require.NoError(t, err)
	assert.Equal(t, 25, percent)

	tracker.Advance("up-1", 400)
	percent, err = tracker.Percent("up-1")
	require.NoError(t, err)
	assert.Equal(t, 100, percent, "进度不应超过 100")

	tracker.End("up-1")
	_, err = tracker.Percent("up-1")
	assert.ErrorIs(t, err, xerr.ErrUploadNotFound)

	// 总大小未知时进度保持 0
	tracker.Begin("up-2", 0)
	percent, err = tracker.Percent("up-2")
	require.NoError(t, err)
	assert.Zero(t, percent)
}

func TestUploadProgressClearedAfterUpload(t *testing.T) {
	env := newTestEnv(t)

	req := uploadReq("with progress", 7, nil)
	req.UploadID = "up-done"
	_, err := env.svc.Upload(context.Background(), 1, req)
	require.NoError(t, err)

	_, err = env.svc.UploadProgress("up-done")
	assert.ErrorIs(t, err, xerr.ErrUploadNotFound)
}
