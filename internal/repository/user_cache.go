package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/model"
)

const userCachePrefix = "unimarket:user:"

// cachedUserRepository serves id lookups from redis and falls back to the
// wrapped repository on a miss or on any cache failure.
type cachedUserRepository struct {
	UserRepository
	rdb redis.Cmdable
	ttl time.Duration
	log logrus.FieldLogger
}

// NewCachedUserRepository wraps base with a redis read-through cache.
// A nil client disables caching and returns base unchanged.
func NewCachedUserRepository(base UserRepository, rdb redis.Cmdable, ttl time.Duration, log logrus.FieldLogger) UserRepository {
	if rdb == nil {
		return base
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &cachedUserRepository{UserRepository: base, rdb: rdb, ttl: ttl, log: log}
}

func userCacheKey(id uint64) string {
	return userCachePrefix + strconv.FormatUint(id, 10)
}

func (r *cachedUserRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	raw, err := r.rdb.Get(ctx, userCacheKey(id)).Bytes()
	if err == nil {
		var u model.User
		if jerr := json.Unmarshal(raw, &u); jerr == nil {
			return &u, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		r.log.WithError(err).Warn("user cache get failed")
	}

	u, err := r.UserRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, []model.User{*u})
	return u, nil
}

func (r *cachedUserRepository) FindByIDs(ctx context.Context, ids []uint64) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userCacheKey(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		r.log.WithError(err).Warn("user cache mget failed")
		return r.UserRepository.FindByIDs(ctx, ids)
	}

	users := make([]model.User, 0, len(ids))
	var missing []uint64
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var u model.User
		if err := json.Unmarshal([]byte(s), &u); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		users = append(users, u)
	}
	if len(missing) == 0 {
		return users, nil
	}

	loaded, err := r.UserRepository.FindByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	r.store(ctx, loaded)
	return append(users, loaded...), nil
}

func (r *cachedUserRepository) store(ctx context.Context, users []model.User) {
	if len(users) == 0 {
		return
	}
	pipe := r.rdb.Pipeline()
	for _, u := range users {
		raw, err := json.Marshal(u)
		if err != nil {
			continue
		}
		pipe.Set(ctx, userCacheKey(u.ID), raw, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.WithError(err).Warn("user cache set failed")
	}
}
