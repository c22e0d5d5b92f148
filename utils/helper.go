package utils

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"github.com/bsm/redislock"
)

const DefaultTimezone = "America/Sao_Paulo"

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	if len(defaults) > 0 {
		return defaults[0]
	}
	var zero T
	return zero
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// get type name of struct
func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

// ConvertToDate truncates t to the calendar date it falls on in the given timezone.
// Quota and KPI boundaries are local-calendar boundaries, never UTC ones.
func ConvertToDate(t time.Time, timezone string) (time.Time, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		return t, err
	}
	localTime := t.In(location)

	dateOnly := time.Date(localTime.Year(), localTime.Month(), localTime.Day(), 0, 0, 0, 0, location)
	return dateOnly, nil
}

// StartOfWeek returns the Monday of the week containing date, at midnight in
// date's location.
func StartOfWeek(date time.Time) time.Time {
	// time.Weekday: Sunday=0 ... Saturday=6; our weeks run Monday..Sunday.
	offset := (int(date.Weekday()) + 6) % 7
	monday := date.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, date.Location())
}

// EndOfWeek returns the Sunday of the week containing date, at 23:59:59.999...
func EndOfWeek(date time.Time) time.Time {
	sunday := StartOfWeek(date).AddDate(0, 0, 6)
	return time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), date.Location())
}

// DaysUntilSunday counts the days remaining after date until the Sunday of the
// same week; Sunday itself yields 0.
func DaysUntilSunday(date time.Time) int {
	return (7 - ((int(date.Weekday()) + 6) % 7) - 1) % 7
}

// WithLock obtains a redis lock for key and runs fn while holding it.
// Reliability must not depend on Redis alone: callers also run inside a DB
// transaction, the lock just narrows the race window across instances.
func WithLock(ctx context.Context, lockType string, key string, moduleName string, functionName string, fn func() error) error {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when the Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", key, errors.New("redis lock is nil"))
		return errors.New("service not ready (redis lock not initialized)")
	}

	lockKey := fmt.Sprintf("%s:%s", lockType, key)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	})
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock", lockKey, err)
		return fmt.Errorf("could not obtain lock %s", lockKey)
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock", lockKey, err)
		return err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	return fn()
}

// QuotaLock serializes quota reads/increments per (analyst, local date).
func QuotaLock(ctx context.Context, analystId int, date time.Time, moduleName string, functionName string, fn func() error) error {
	key := fmt.Sprintf("%d:%s", analystId, date.Format("2006-01-02"))
	return WithLock(ctx, "DailyQuotaLock", key, moduleName, functionName, fn)
}

// IssueLock serializes state transitions per issue.
func IssueLock(ctx context.Context, issueId int, moduleName string, functionName string, fn func() error) error {
	return WithLock(ctx, "IssueLock", fmt.Sprint(issueId), moduleName, functionName, fn)
}

// NormalizeStoreCode uppercases and trims a store code for lookups.
func NormalizeStoreCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
