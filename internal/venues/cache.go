package venues

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-events/internal/dbresult"
	"ms-events/internal/logger"
)

const (
	venueMapKey = "venues:map"
	// venueGenKey is bumped on every invalidation. A map loaded under an
	// older generation is never written back.
	venueGenKey = "venues:map:gen"
)

type MapSource interface {
	VenueMap(ctx context.Context) dbresult.Result[map[int64]string]
}

// CachedProjector keeps the id->name map in a Redis hash. Redis is best
// effort: any cache error falls back to the source and is only logged.
type CachedProjector struct {
	Source MapSource
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewCachedProjector(source MapSource, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedProjector {
	if log == nil {
		log = logger.Discard()
	}
	return &CachedProjector{Source: source, Client: client, TTL: ttl, Logger: log}
}

func (c *CachedProjector) VenueMap(ctx context.Context) dbresult.Result[map[int64]string] {
	return dbresult.Handle("Failed to fetch venues", func() dbresult.Result[map[int64]string] {
		cached, err := c.Client.HGetAll(ctx, venueMapKey).Result()
		if err != nil {
			c.Logger.Warn("REDIS", fmt.Sprintf("Venue cache read failed: %v", err))
		} else if len(cached) > 0 {
			if venueMap, ok := decodeVenueMap(cached); ok {
				return dbresult.Success(venueMap)
			}
			c.Logger.Warn("REDIS", "Venue cache holds malformed entries, reloading")
		}

		gen, err := c.generation(ctx)
		if err != nil {
			c.Logger.Warn("REDIS", fmt.Sprintf("Venue cache generation read failed: %v", err))
			return c.Source.VenueMap(ctx)
		}

		res := c.Source.VenueMap(ctx)
		if !res.Success || len(res.Data) == 0 {
			return res
		}
		c.store(ctx, gen, res.Data)
		return res
	})
}

func (c *CachedProjector) generation(ctx context.Context) (int64, error) {
	return generationOf(c.Client.Get(ctx, venueGenKey))
}

func generationOf(cmd *redis.StringCmd) (int64, error) {
	gen, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// store writes venueMap only if no invalidation happened since gen was read.
// The generation key is watched, so an invalidation racing the write aborts
// the transaction.
func (c *CachedProjector) store(ctx context.Context, gen int64, venueMap map[int64]string) {
	fields := make(map[string]interface{}, len(venueMap))
	for id, name := range venueMap {
		fields[strconv.FormatInt(id, 10)] = name
	}

	err := c.Client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generationOf(tx.Get(ctx, venueGenKey))
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleVenueMap
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, venueMapKey)
			pipe.HSet(ctx, venueMapKey, fields)
			if c.TTL > 0 {
				pipe.Expire(ctx, venueMapKey, c.TTL)
			}
			return nil
		})
		return err
	}, venueGenKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleVenueMap), errors.Is(err, redis.TxFailedErr):
		c.Logger.Debug("REDIS", "Venue map changed while loading, not cached")
	default:
		c.Logger.Warn("REDIS", fmt.Sprintf("Venue cache write failed: %v", err))
	}
}

var errStaleVenueMap = errors.New("venue map is stale")

// Invalidate drops the cached map and bumps the generation. Called after
// venues were created.
func (c *CachedProjector) Invalidate(ctx context.Context) {
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, venueGenKey)
		pipe.Del(ctx, venueMapKey)
		return nil
	})
	if err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("Venue cache invalidation failed: %v", err))
	}
}

func decodeVenueMap(fields map[string]string) (map[int64]string, bool) {
	venueMap := make(map[int64]string, len(fields))
	for k, name := range fields {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, false
		}
		venueMap[id] = name
	}
	return venueMap, true
}
