package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvill/identity-service/internal/api/metrics"
	"github.com/hvill/identity-service/internal/core/ports"
)

// DraftJanitor reclaims draft identities whose registration never finished.
// Abandoned drafts carry no uniqueness weight, but they accumulate; the
// sweep keeps the collection bounded.
type DraftJanitor struct {
	identities ports.IdentityRepository
	retention  time.Duration
	interval   time.Duration
	log        zerolog.Logger
}

// NewDraftJanitor builds a janitor that every interval deletes drafts older
// than retention.
func NewDraftJanitor(identities ports.IdentityRepository, retention, interval time.Duration, log zerolog.Logger) *DraftJanitor {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &DraftJanitor{identities: identities, retention: retention, interval: interval, log: log}
}

// Run sweeps until ctx is cancelled.
func (j *DraftJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *DraftJanitor) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.retention)
	deleted, err := j.identities.DeleteDraftsBefore(ctx, cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("draft cleanup sweep failed")
		return
	}
	if deleted > 0 {
		metrics.DraftsReclaimedTotal.Add(float64(deleted))
		j.log.Info().Int64("deleted", deleted).Msg("stale drafts reclaimed")
	}
}
