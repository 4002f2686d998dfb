package positioning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/skyanchor/skyanchor/internal/solveclient"
	"github.com/skyanchor/skyanchor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSolveClient struct {
	submitFunc func(ctx context.Context, imagePath string) (string, error)
	statusFunc func(ctx context.Context, jobID string) (*models.SolverJob, error)
	infoFunc   func(ctx context.Context, jobID string) (*models.JobInfo, error)
}

func (f *fakeSolveClient) Submit(ctx context.Context, imagePath string) (string, error) {
	return f.submitFunc(ctx, imagePath)
}

func (f *fakeSolveClient) Status(ctx context.Context, jobID string) (*models.SolverJob, error) {
	return f.statusFunc(ctx, jobID)
}

func (f *fakeSolveClient) Info(ctx context.Context, jobID string) (*models.JobInfo, error) {
	return f.infoFunc(ctx, jobID)
}

func (f *fakeSolveClient) Health(ctx context.Context) error { return nil }

type fakeStore struct {
	mu      sync.Mutex
	created []*models.Positioning
	listed  []*models.Positioning
	listErr error
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) CreatePositioning(ctx context.Context, p *models.Positioning) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, p)
	return nil
}

func (f *fakeStore) GetPositioning(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Positioning, error) {
	return nil, nil
}

func (f *fakeStore) ListPositionings(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Positioning, error) {
	return f.listed, f.listErr
}

func (f *fakeStore) records(t *testing.T) []*models.Positioning {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Positioning(nil), f.created...)
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	return val, ok, nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeCache) Ping(ctx context.Context) error { return nil }

func (f *fakeCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	return 1, nil
}

func successfulClient(ra, dec float64) *fakeSolveClient {
	return &fakeSolveClient{
		submitFunc: func(context.Context, string) (string, error) { return "job-123", nil },
		statusFunc: func(_ context.Context, jobID string) (*models.SolverJob, error) {
			return &models.SolverJob{ID: jobID, Status: models.JobStatusSuccess}, nil
		},
		infoFunc: func(context.Context, string) (*models.JobInfo, error) {
			return &models.JobInfo{
				Status:      models.JobStatusSuccess,
				SolveTime:   4.2,
				Calibration: &models.Calibration{RA: &ra, Dec: &dec},
			}, nil
		},
	}
}

func TestSolveField_Success(t *testing.T) {
	st := &fakeStore{}
	userID := uuid.New()
	svc := NewService(successfulClient(10.68, 41.27), st, newFakeCache(), nil, 10*time.Millisecond, time.Second)

	rec, err := svc.SolveField(context.Background(), "/uploads/m31.jpg", userID)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, rec.Solved)
	assert.Equal(t, userID, rec.UserID)
	assert.Equal(t, "/uploads/m31.jpg", rec.ImagePath)
	require.NotNil(t, rec.RA)
	assert.InDelta(t, 10.68, *rec.RA, 1e-9)
	require.NotNil(t, rec.SolveTime)

	records := st.records(t)
	require.Len(t, records, 1)
	assert.Same(t, rec, records[0])
}

func TestSolveField_SubmitFails(t *testing.T) {
	st := &fakeStore{}
	client := &fakeSolveClient{
		submitFunc: func(context.Context, string) (string, error) {
			return "", solveclient.ErrUpstream
		},
	}
	svc := NewService(client, st, newFakeCache(), nil, 10*time.Millisecond, time.Second)

	_, err := svc.SolveField(context.Background(), "/uploads/m31.jpg", uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, solveclient.ErrUpstream)

	records := st.records(t)
	require.Len(t, records, 1)
	assert.False(t, records[0].Solved)
	assert.Nil(t, records[0].RA)
}

func TestSolveField_JobFailure(t *testing.T) {
	st := &fakeStore{}
	client := &fakeSolveClient{
		submitFunc: func(context.Context, string) (string, error) { return "job-123", nil },
		statusFunc: func(_ context.Context, jobID string) (*models.SolverJob, error) {
			return &models.SolverJob{
				ID:     jobID,
				Status: models.JobStatusFailure,
				Error:  "Did not solve",
			}, nil
		},
	}
	svc := NewService(client, st, newFakeCache(), nil, 10*time.Millisecond, time.Second)

	_, err := svc.SolveField(context.Background(), "/uploads/noise.jpg", uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSolveFailed)
	assert.Contains(t, err.Error(), "Did not solve")

	records := st.records(t)
	require.Len(t, records, 1)
	assert.False(t, records[0].Solved)
}

func TestSolveField_WaitCeiling(t *testing.T) {
	st := &fakeStore{}
	client := &fakeSolveClient{
		submitFunc: func(context.Context, string) (string, error) { return "job-123", nil },
		statusFunc: func(_ context.Context, jobID string) (*models.SolverJob, error) {
			return &models.SolverJob{ID: jobID, Status: models.JobStatusProcessing}, nil
		},
	}
	svc := NewService(client, st, newFakeCache(), nil, 10*time.Millisecond, 100*time.Millisecond)

	_, err := svc.SolveField(context.Background(), "/uploads/deep.jpg", uuid.New())
	assert.ErrorIs(t, err, ErrSolveTimeout)

	records := st.records(t)
	require.Len(t, records, 1)
	assert.False(t, records[0].Solved)
}

func TestSolveField_ContextCancelled(t *testing.T) {
	st := &fakeStore{}
	client := &fakeSolveClient{
		submitFunc: func(context.Context, string) (string, error) { return "job-123", nil },
		statusFunc: func(_ context.Context, jobID string) (*models.SolverJob, error) {
			return &models.SolverJob{ID: jobID, Status: models.JobStatusProcessing}, nil
		},
	}
	svc := NewService(client, st, newFakeCache(), nil, 50*time.Millisecond, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := svc.SolveField(ctx, "/uploads/m31.jpg", uuid.New())
	assert.ErrorIs(t, err, context.Canceled)

	// The attempt is still recorded even though the request context died.
	records := st.records(t)
	require.Len(t, records, 1)
	assert.False(t, records[0].Solved)
}

func TestSolveField_TransientPollErrorsTolerated(t *testing.T) {
	st := &fakeStore{}
	var polls int
	client := &fakeSolveClient{
		submitFunc: func(context.Context, string) (string, error) { return "job-123", nil },
		statusFunc: func(_ context.Context, jobID string) (*models.SolverJob, error) {
			polls++
			if polls < 3 {
				return nil, errors.New("connection refused")
			}
			return &models.SolverJob{ID: jobID, Status: models.JobStatusSuccess}, nil
		},
		infoFunc: func(context.Context, string) (*models.JobInfo, error) {
			return &models.JobInfo{Status: models.JobStatusSuccess}, nil
		},
	}
	svc := NewService(client, st, newFakeCache(), nil, 10*time.Millisecond, time.Second)

	rec, err := svc.SolveField(context.Background(), "/uploads/m31.jpg", uuid.New())
	require.NoError(t, err)
	assert.True(t, rec.Solved)
	assert.GreaterOrEqual(t, polls, 3)
}

func TestSolveField_InfoFetchFails(t *testing.T) {
	st := &fakeStore{}
	client := successfulClient(10, 20)
	client.infoFunc = func(context.Context, string) (*models.JobInfo, error) {
		return nil, solveclient.ErrUpstream
	}
	svc := NewService(client, st, newFakeCache(), nil, 10*time.Millisecond, time.Second)

	_, err := svc.SolveField(context.Background(), "/uploads/m31.jpg", uuid.New())
	require.Error(t, err)

	records := st.records(t)
	require.Len(t, records, 1)
	assert.False(t, records[0].Solved)
}

func TestSolveField_InvalidatesHistoryCache(t *testing.T) {
	st := &fakeStore{}
	ca := newFakeCache()
	userID := uuid.New()
	svc := NewService(successfulClient(10, 20), st, ca, nil, 10*time.Millisecond, time.Second)

	_, err := svc.SolveField(context.Background(), "/uploads/m31.jpg", userID)
	require.NoError(t, err)
	assert.NotEmpty(t, ca.deleted)
}

func TestGetHistory_CacheHit(t *testing.T) {
	userID := uuid.New()
	cached := []*models.Positioning{{ID: uuid.New(), UserID: userID, Solved: true}}

	ca := newFakeCache()
	st := &fakeStore{listed: cached}
	svc := NewService(nil, st, ca, nil, time.Second, time.Second)

	// First read hits the store and populates the cache.
	recs, err := svc.GetHistory(context.Background(), userID, 20)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// Second read must come from cache.
	st.listErr = errors.New("db must not be hit")
	recs, err = svc.GetHistory(context.Background(), userID, 20)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, cached[0].ID, recs[0].ID)
}

func TestGetHistory_LimitClamped(t *testing.T) {
	userID := uuid.New()
	st := &fakeStore{listed: []*models.Positioning{}}
	svc := NewService(nil, st, nil, nil, time.Second, time.Second)

	recs, err := svc.GetHistory(context.Background(), userID, -5)
	require.NoError(t, err)
	assert.NotNil(t, recs)

	recs, err = svc.GetHistory(context.Background(), userID, 5000)
	require.NoError(t, err)
	assert.NotNil(t, recs)
}
