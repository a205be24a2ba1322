package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sweepLockPrefix   = "sweep:lock:"
	emergencyStopKey  = "sweep:emergency_stop"
	emergencyStopTTL  = 24 * time.Hour
	defaultLockExpiry = 2 * time.Minute
)

// AcquireSweepLock takes a short-lived cross-process lock for an address.
// It guards the enqueue window against two evaluator instances racing on the
// same balance observation; the durable dedupe check in the queue store is
// still the invariant of record.
func AcquireSweepLock(ctx context.Context, address, owner string) (bool, error) {
	return client.SetNX(ctx, sweepLockPrefix+address, owner, defaultLockExpiry).Result()
}

// ReleaseSweepLock releases an address lock
func ReleaseSweepLock(ctx context.Context, address string) error {
	return client.Del(ctx, sweepLockPrefix+address).Err()
}

// SetEmergencyStop raises the global emergency-stop flag. Workers stop
// claiming new entries; in-flight broadcasts are left to finish.
func SetEmergencyStop(ctx context.Context, reason string) error {
	return client.Set(ctx, emergencyStopKey, reason, emergencyStopTTL).Err()
}

// ClearEmergencyStop lowers the emergency-stop flag
func ClearEmergencyStop(ctx context.Context) error {
	return client.Del(ctx, emergencyStopKey).Err()
}

// SweepLocker adapts the package-level lock helpers to an injectable value.
type SweepLocker struct{}

func (SweepLocker) Acquire(ctx context.Context, address, owner string) (bool, error) {
	return AcquireSweepLock(ctx, address, owner)
}

func (SweepLocker) Release(ctx context.Context, address string) error {
	return ReleaseSweepLock(ctx, address)
}

// EmergencyStopped reports whether the emergency-stop flag is raised
func EmergencyStopped(ctx context.Context) (bool, error) {
	_, err := client.Get(ctx, emergencyStopKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
