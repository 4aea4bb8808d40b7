package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/stockcount_backend/config"
	"github.com/bsm/redislock"
)

// LocationLock obtains a short advisory lock scoped to one location, used to
// keep two operators from running the same full ledger rebuild concurrently.
// Returns a release func. Ledger correctness never depends on this lock;
// upserts stay last-write-wins.
func LocationLock(ctx context.Context, locationId int, lockType string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", locationId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%d", lockType, locationId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for location", locationId, err)
		return nil, errors.New("could not obtain lock for location")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for location", locationId, err)
		return nil, err
	}
	return func() {
		_ = lock.Release(ctx)
	}, nil
}
