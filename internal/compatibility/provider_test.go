package compatibility

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-match-workers/internal/common/logger"
)

// ==========================
// Postgres provider
// ==========================

func TestPostgresFeatureProvider_EmbeddingAndStructured(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT vector FROM user_vectors WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"vector"}).AddRow("[1,2,3]"))
	mock.ExpectQuery(`SELECT personality, schedule, lifestyle, social`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"personality", "schedule", "lifestyle", "social"}).
			AddRow([]byte(`{"extraversion":3,"agreeableness":4,"conscientiousness":5,"neuroticism":1,"openness":2}`), nil, nil, nil))
	mock.ExpectQuery(`SELECT study_year FROM user_study_year_v`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"study_year"}).AddRow(3.0))

	f, err := NewPostgresFeatureProvider(db).Features(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 2, 3}, f.Embedding)
	require.NotNil(t, f.Personality)
	assert.Equal(t, 5.0, f.Personality.Conscientiousness)
	assert.Nil(t, f.Schedule)
	require.NotNil(t, f.StudyYear)
	assert.Equal(t, 3.0, *f.StudyYear)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFeatureProvider_NothingKnown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT vector FROM user_vectors`).WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"vector"}))
	mock.ExpectQuery(`SELECT personality, schedule, lifestyle, social`).WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"personality", "schedule", "lifestyle", "social"}))
	mock.ExpectQuery(`SELECT study_year FROM user_study_year_v`).WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"study_year"}).AddRow(1.0))

	_, err = NewPostgresFeatureProvider(db).Features(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrFeaturesNotFound)
}

func TestPostgresFeatureProvider_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT vector FROM user_vectors`).WithArgs("u3").
		WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresFeatureProvider(db).Features(context.Background(), "u3")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFeaturesNotFound)
	assert.Contains(t, err.Error(), "connection refused")
}

// ==========================
// Redis cache
// ==========================

type countingProvider struct {
	calls int32
	err   error
}

func (c *countingProvider) Features(_ context.Context, userID string) (*MemberFeatures, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return &MemberFeatures{UserID: userID, Embedding: []float64{1, 2}}, nil
}

func TestCachedProvider_HitsAfterFirstLoad(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	next := &countingProvider{}
	cached := NewCachedProvider(next, client, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	first, err := cached.Features(ctx, "u1")
	require.NoError(t, err)
	second, err := cached.Features(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&next.calls))
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("compat:features:u1"))
	assert.Equal(t, time.Minute, mr.TTL("compat:features:u1"))
}

func TestCachedProvider_RedisDownFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.SetError("LOADING")
	next := &countingProvider{}
	cached := NewCachedProvider(next, client, time.Minute, logger.NewTestLogger(t))

	f, err := cached.Features(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", f.UserID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&next.calls))
}

func TestCachedProvider_DoesNotCacheMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cached := NewCachedProvider(&countingProvider{err: ErrFeaturesNotFound}, client, time.Minute, logger.NewTestLogger(t))

	_, err := cached.Features(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrFeaturesNotFound)
	assert.False(t, mr.Exists("compat:features:ghost"))
}
