package blockhub

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var (
	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "blockhub",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"collection", "operation"},
	)

	storeOperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blockhub",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total store operations",
		},
		[]string{"collection", "operation", "result"},
	)
)

const slowOperationThreshold = 100 * time.Millisecond

type instrumentedUserRepository struct {
	inner Repository
	log   logrus.FieldLogger
}

// NewInstrumentedUserRepository records latency and outcome of every call to
// inner and logs failed or slow operations.
func NewInstrumentedUserRepository(inner Repository, log logrus.FieldLogger) Repository {
	return &instrumentedUserRepository{inner: inner, log: log}
}

func (r *instrumentedUserRepository) InsertIfAbsent(ctx context.Context, u *User) (bool, error) {
	return instrument(r.log, UsersCollection, "InsertIfAbsent", func() (bool, error) {
		return r.inner.InsertIfAbsent(ctx, u)
	})
}

func (r *instrumentedUserRepository) FindByName(ctx context.Context, username string) (*User, error) {
	return instrument(r.log, UsersCollection, "FindByName", func() (*User, error) {
		return r.inner.FindByName(ctx, username)
	})
}

func (r *instrumentedUserRepository) FindByLinkedAccount(ctx context.Context, acc LinkedAccount) (*User, error) {
	return instrument(r.log, UsersCollection, "FindByLinkedAccount", func() (*User, error) {
		return r.inner.FindByLinkedAccount(ctx, acc)
	})
}

func (r *instrumentedUserRepository) UpdateHash(ctx context.Context, username, expected, hash string) (int64, error) {
	return instrument(r.log, UsersCollection, "UpdateHash", func() (int64, error) {
		return r.inner.UpdateHash(ctx, username, expected, hash)
	})
}

func (r *instrumentedUserRepository) FindAndSetHash(ctx context.Context, username, hash string) (*User, error) {
	return instrument(r.log, UsersCollection, "FindAndSetHash", func() (*User, error) {
		return r.inner.FindAndSetHash(ctx, username, hash)
	})
}

func (r *instrumentedUserRepository) AddLinkedAccount(ctx context.Context, username string, acc LinkedAccount) (int64, error) {
	return instrument(r.log, UsersCollection, "AddLinkedAccount", func() (int64, error) {
		return r.inner.AddLinkedAccount(ctx, username, acc)
	})
}

func (r *instrumentedUserRepository) RemoveLinkedAccount(ctx context.Context, username string, acc LinkedAccount) (int64, error) {
	return instrument(r.log, UsersCollection, "RemoveLinkedAccount", func() (int64, error) {
		return r.inner.RemoveLinkedAccount(ctx, username, acc)
	})
}

func (r *instrumentedUserRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	_, err := instrument(r.log, UsersCollection, "UpdateLastLogin", func() (struct{}, error) {
		return struct{}{}, r.inner.UpdateLastLogin(ctx, username, at)
	})
	return err
}

func (r *instrumentedUserRepository) Delete(ctx context.Context, username string) (int64, error) {
	return instrument(r.log, UsersCollection, "Delete", func() (int64, error) {
		return r.inner.Delete(ctx, username)
	})
}

func instrument[T any](log logrus.FieldLogger, collection, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	elapsed := time.Since(start)

	storeOperationDuration.WithLabelValues(collection, operation).Observe(elapsed.Seconds())

	fields := logrus.Fields{
		"collection":  collection,
		"operation":   operation,
		"duration_ms": elapsed.Milliseconds(),
	}

	switch {
	case err != nil:
		storeOperationTotal.WithLabelValues(collection, operation, classify(err)).Inc()
		log.WithFields(fields).WithError(err).Error("store operation failed")
	case elapsed > slowOperationThreshold:
		storeOperationTotal.WithLabelValues(collection, operation, "success").Inc()
		log.WithFields(fields).Warn("slow store operation")
	default:
		storeOperationTotal.WithLabelValues(collection, operation, "success").Inc()
	}

	return result, err
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
