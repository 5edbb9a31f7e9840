package infra

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Stores holds the optional backing stores. A nil field means the service
// runs on its in-memory fallback for that concern.
type Stores struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// Open connects to every store whose URL is set.
func Open(ctx context.Context, databaseURL, redisURL string, logger *slog.Logger) (Stores, error) {
	var s Stores
	if databaseURL != "" {
		db, err := NewPostgresPool(ctx, databaseURL)
		if err != nil {
			return Stores{}, err
		}
		s.DB = db
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory user store")
	}

	if redisURL != "" {
		cache, err := NewRedisClient(ctx, redisURL)
		if err != nil {
			s.Close(logger)
			return Stores{}, err
		}
		s.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, using in-memory session store")
	}
	return s, nil
}

// Close releases whatever Open connected.
func (s Stores) Close(logger *slog.Logger) {
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
