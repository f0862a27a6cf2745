package service

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/repository"
	"backoffice/pkg/logger"
)

// Business number prefixes.
const (
	PrefixOrder   = "ORD"
	PrefixInvoice = "INV"
	PrefixExpense = "EXP"
)

// ExistsFunc reports whether a candidate number is already taken.
type ExistsFunc func(ctx context.Context, number string) (bool, error)

// Numerator allocates PREFIX-YEAR-NNNNNN numbers from an atomic per-year counter.
// Callers invoke it before opening their business transaction so the counter row
// lock is released immediately.
type Numerator struct {
	sequences   repository.SequenceRepository
	maxAttempts int
	log         *logger.Logger
	now         func() time.Time
}

func NewNumerator(sequences repository.SequenceRepository, maxAttempts int, log *logger.Logger) *Numerator {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Numerator{
		sequences:   sequences,
		maxAttempts: maxAttempts,
		log:         log.WithComponent("numerator"),
		now:         time.Now,
	}
}

// Next returns a number not reported as taken by exists. Counter values that
// collide with rows written by other means are skipped. After maxAttempts the
// number degrades to PREFIX-<unix millis>.
func (n *Numerator) Next(ctx context.Context, prefix string, exists ExistsFunc) (string, error) {
	now := n.now()
	key := fmt.Sprintf("%s_%d", prefix, now.Year())

	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		value, err := n.sequences.Next(ctx, key)
		if err != nil {
			n.log.Warnw("sequence increment failed", "key", key, "attempt", attempt, "error", err)
			continue
		}

		candidate := FormatNumber(prefix, now.Year(), value)
		taken, err := exists(ctx, candidate)
		if err != nil {
			n.log.Warnw("number uniqueness check failed", "number", candidate, "attempt", attempt, "error", err)
			continue
		}
		if !taken {
			return candidate, nil
		}
		n.log.Warnw("number already taken", "number", candidate, "attempt", attempt)
	}

	fallback := fmt.Sprintf("%s-%d", prefix, now.UnixMilli())
	n.log.Warnw("numbering fell back to timestamp", "prefix", prefix, "number", fallback)
	return fallback, nil
}

// FormatNumber renders PREFIX-YEAR-NNNNNN.
func FormatNumber(prefix string, year int, value int64) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, value)
}
