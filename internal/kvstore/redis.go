package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kvstore")

// RedisStore implements Store on a redis client. Every operation carries a
// bounded timeout and runs through a circuit breaker so a redis outage
// surfaces quickly as ErrUnavailable instead of hanging request handlers.
type RedisStore struct {
	rdb       *redis.Client
	breaker   *gobreaker.CircuitBreaker
	opTimeout time.Duration
}

func NewRedis(rdb *redis.Client) *RedisStore {
	settings := gobreaker.Settings{
		Name:        "kvstore",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &RedisStore{
		rdb:       rdb,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		opTimeout: 2 * time.Second,
	}
}

// do wraps one redis call with a span, a timeout and the breaker. fn must map
// "key absent" to a nil result itself; only transport faults may reach the
// breaker as errors, a cache miss must never trip it.
func (s *RedisStore) do(ctx context.Context, op, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ctx, span := tracer.Start(ctx, op,
		trace.WithAttributes(attribute.String("kv.key", key)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := s.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	res, err := s.do(ctx, "kvstore.Get", key, func(ctx context.Context) (interface{}, error) {
		val, err := s.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return val, nil
	})
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", ErrNotFound
	}
	return res.(string), nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.do(ctx, "kvstore.Set", key, func(ctx context.Context) (interface{}, error) {
		return nil, s.rdb.Set(ctx, key, value, ttl).Err()
	})
	return err
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	res, err := s.do(ctx, "kvstore.SetNX", key, func(ctx context.Context) (interface{}, error) {
		return s.rdb.SetNX(ctx, key, value, ttl).Result()
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	res, err := s.do(ctx, "kvstore.HGetAll", key, func(ctx context.Context) (interface{}, error) {
		return s.rdb.HGetAll(ctx, key).Result()
	})
	if err != nil {
		return nil, err
	}
	fields := res.(map[string]string)
	// redis reports a missing hash as an empty map, not as a nil reply
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fields, nil
}

func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	args := make([]interface{}, 0, len(fields)*2)
	for f, v := range fields {
		args = append(args, f, v)
	}
	_, err := s.do(ctx, "kvstore.HSet", key, func(ctx context.Context) (interface{}, error) {
		return nil, s.rdb.HSet(ctx, key, args...).Err()
	})
	return err
}

func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	res, err := s.do(ctx, "kvstore.HIncrBy", key, func(ctx context.Context) (interface{}, error) {
		return s.rdb.HIncrBy(ctx, key, field, delta).Result()
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (s *RedisStore) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	res, err := s.do(ctx, "kvstore.IncrByFloat", key, func(ctx context.Context) (interface{}, error) {
		return s.rdb.IncrByFloat(ctx, key, delta).Result()
	})
	if err != nil {
		return 0, err
	}
	return res.(float64), nil
}
