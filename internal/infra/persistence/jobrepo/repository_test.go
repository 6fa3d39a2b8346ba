package jobrepo

import (
	"context"
	"sync"
	"testing"
	"time"

	domain "github.com/jobs/routineload/internal/biz/routineload"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// errorLogger 记录 gorm 上报的 SQL 错误
type errorLogger struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLogger) LogMode(logger.LogLevel) logger.Interface { return l }
func (l *errorLogger) Info(context.Context, string, ...interface{}) {}
func (l *errorLogger) Warn(context.Context, string, ...interface{}) {}
func (l *errorLogger) Error(context.Context, string, ...interface{}) {}

func (l *errorLogger) Trace(_ context.Context, _ time.Time, _ func() (string, int64), err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *errorLogger) errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

func newTestRepo(t *testing.T) domain.JobRepo {
	t.Helper()
	return newTestRepoWithLogger(t, logger.Discard)
}

func newTestRepoWithLogger(t *testing.T, l logger.Interface) domain.JobRepo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: l})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&JobPo{}))
	return NewRepositoryImpl(db)
}

func newJob(name string) *domain.Job {
	return &domain.Job{
		Name:        name,
		ClusterName: "default_cluster",
		DBID:        11,
		DBName:      "sales",
		TableName:   "orders",
		SourceKind:  domain.SourceKafka,
		Properties: map[string]any{
			domain.PropKafkaBrokerList: "127.0.0.1:9092",
			domain.PropKafkaTopic:      "orders",
		},
		Progress:           map[string]string{"0": "100"},
		TaskTimeoutSeconds: 20,
		State:              domain.JobStateNeedSchedule,
	}
}

func TestJobRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job := newJob("orders_load")
	require.NoError(t, repo.Create(ctx, job))
	require.NotZero(t, job.ID)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "orders_load", got.Name)
	assert.Equal(t, "orders", got.TableName)
	assert.Equal(t, domain.SourceKafka, got.SourceKind)
	assert.Equal(t, "orders", got.Properties[domain.PropKafkaTopic])
	assert.Equal(t, map[string]string{"0": "100"}, got.Progress)

	byName, err := repo.GetByName(ctx, "orders_load")
	require.NoError(t, err)
	assert.Equal(t, job.ID, byName.ID)

	missing, err := repo.GetByID(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestJobRepositoryUpdateAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a := newJob("a")
	b := newJob("b")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	progress := map[string]string{"0": "300", "1": "5"}
	patch := domain.NewJobPatch().WithState(domain.JobStatePaused).WithReason("manual").WithProgress(progress)
	require.NoError(t, repo.Update(ctx, a.ID, patch))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatePaused, got.State)
	assert.Equal(t, "manual", got.Reason)
	assert.Equal(t, progress, got.Progress)

	paused, err := repo.List(ctx, &domain.JobFilter{State: mo.Some(domain.JobStatePaused)})
	require.NoError(t, err)
	require.Len(t, paused, 1)
	assert.Equal(t, "a", paused[0].Name)

	all, err := repo.List(ctx, &domain.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestJobRepositoryMissingLookupIsQuiet(t *testing.T) {
	ctx := context.Background()
	l := &errorLogger{}
	repo := newTestRepoWithLogger(t, l)

	got, err := repo.GetByName(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = repo.GetByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Create(ctx, newJob("present")))
	got, err = repo.GetByName(ctx, "present")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "present", got.Name)

	assert.Empty(t, l.errors())
}
