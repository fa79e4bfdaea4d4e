package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

// TryLease takes the named lease for ttl. ok is false when another holder
// has it. The caller releases the lock when done.
func TryLease(ctx context.Context, locker *redislock.Client, job string, ttl time.Duration) (*redislock.Lock, bool, error) {
	lock, err := locker.Obtain(ctx, fmt.Sprintf(KeyLease, job), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return lock, true, nil
}
