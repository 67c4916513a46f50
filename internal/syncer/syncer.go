// Package syncer pushes Verified leads downstream, at most once each.
package syncer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/leadsync/internal/metrics"
	"github.com/sells-group/leadsync/internal/model"
)

// LeadStore is the part of store.Store the sync task needs.
type LeadStore interface {
	FindUnsyncedVerified(ctx context.Context) ([]model.Lead, error)
	MarkSynced(ctx context.Context, id string) (bool, error)
}

// Notifier delivers a synced lead downstream.
type Notifier interface {
	Send(ctx context.Context, lead model.Lead) error
}

// Syncer claims unsynced Verified leads and notifies the CRM about them.
type Syncer struct {
	store    LeadStore
	notifier Notifier
	group    singleflight.Group
}

// New creates a Syncer.
func New(store LeadStore, notifier Notifier) *Syncer {
	return &Syncer{store: store, notifier: notifier}
}

type runResult struct {
	synced int
}

// Run syncs every pending Verified lead and returns how many this call
// claimed and sent. A call that overlaps an in-flight run waits for it and
// reports 0, with the run's error if any, so the leads are counted once.
// On failure the count covers the leads handled before the error; those
// stay synced.
func (s *Syncer) Run(ctx context.Context) (int, error) {
	started := false
	v, err, _ := s.group.Do("sync", func() (any, error) {
		started = true
		n, err := s.run(ctx)
		return runResult{synced: n}, err
	})
	if !started {
		zap.L().Debug("sync: joined in-flight run")
		return 0, err
	}
	res, _ := v.(runResult)
	return res.synced, err
}

func (s *Syncer) run(ctx context.Context) (int, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "syncer"))

	leads, err := s.store.FindUnsyncedVerified(ctx)
	if err != nil {
		metrics.RecordSyncRun(0, err)
		return 0, eris.Wrap(err, "sync: find unsynced verified leads")
	}

	synced := 0
	for _, lead := range leads {
		claimed, err := s.store.MarkSynced(ctx, lead.ID)
		if err != nil {
			metrics.RecordSyncRun(synced, err)
			return synced, eris.Wrapf(err, "sync: claim lead %s", lead.ID)
		}
		if !claimed {
			log.Debug("sync: lead already claimed", zap.String("lead_id", lead.ID))
			continue
		}

		lead.Synced = true
		if err := s.notifier.Send(ctx, lead); err != nil {
			metrics.RecordSyncRun(synced, err)
			return synced, eris.Wrapf(err, "sync: notify lead %s", lead.ID)
		}
		synced++
	}

	metrics.RecordSyncRun(synced, nil)
	log.Info("sync: complete",
		zap.Int("pending", len(leads)),
		zap.Int("synced", synced),
		zap.Duration("elapsed", time.Since(start)),
	)
	return synced, nil
}
