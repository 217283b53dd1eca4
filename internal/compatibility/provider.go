package compatibility

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/redis/go-redis/v9"

	"roommate-match-workers/internal/common/logger"
)

// PostgresFeatureProvider reads member embeddings from user_vectors and
// structured features from user_category_features and user_study_year_v.
type PostgresFeatureProvider struct {
	db *sql.DB
}

func NewPostgresFeatureProvider(db *sql.DB) *PostgresFeatureProvider {
	return &PostgresFeatureProvider{db: db}
}

func (p *PostgresFeatureProvider) Features(ctx context.Context, userID string) (*MemberFeatures, error) {
	f := &MemberFeatures{UserID: userID}
	found := false

	var vec pgvector.Vector
	err := p.db.QueryRowContext(ctx, `SELECT vector FROM user_vectors WHERE user_id = $1`, userID).Scan(&vec)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load vector for %s: %w", userID, err)
	default:
		raw := vec.Slice()
		f.Embedding = make([]float64, len(raw))
		for i, x := range raw {
			f.Embedding[i] = float64(x)
		}
		found = len(f.Embedding) > 0
	}

	var personality, schedule, lifestyle, social []byte
	err = p.db.QueryRowContext(ctx, `
		SELECT personality, schedule, lifestyle, social
		FROM user_category_features WHERE user_id = $1`, userID).
		Scan(&personality, &schedule, &lifestyle, &social)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load category features for %s: %w", userID, err)
	default:
		parts := []struct {
			raw []byte
			dst interface{}
		}{
			{personality, &f.Personality},
			{schedule, &f.Schedule},
			{lifestyle, &f.Lifestyle},
			{social, &f.Social},
		}
		for _, part := range parts {
			if len(part.raw) == 0 {
				continue
			}
			if err := json.Unmarshal(part.raw, part.dst); err != nil {
				return nil, fmt.Errorf("decode category features for %s: %w", userID, err)
			}
			found = true
		}
	}

	var year sql.NullFloat64
	err = p.db.QueryRowContext(ctx, `SELECT study_year FROM user_study_year_v WHERE user_id = $1`, userID).Scan(&year)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load study year for %s: %w", userID, err)
	}
	if year.Valid {
		y := year.Float64
		f.StudyYear = &y
	}

	if !found {
		return nil, ErrFeaturesNotFound
	}
	return f, nil
}

const featureCachePrefix = "compat:features:"

// CachedProvider keeps member features in Redis. Redis failures fall through
// to the wrapped provider.
type CachedProvider struct {
	next   FeatureProvider
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedProvider(next FeatureProvider, client redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedProvider {
	return &CachedProvider{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "feature-cache"}),
	}
}

func (c *CachedProvider) Features(ctx context.Context, userID string) (*MemberFeatures, error) {
	key := featureCachePrefix + userID

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var f MemberFeatures
		if jsonErr := json.Unmarshal(raw, &f); jsonErr == nil {
			return &f, nil
		}
		c.logger.Warn("dropping undecodable cache entry", map[string]interface{}{"key": key})
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("feature cache read failed", map[string]interface{}{"key": key, "error": err})
	}

	f, err := c.next.Features(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(f); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("feature cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	}
	return f, nil
}
