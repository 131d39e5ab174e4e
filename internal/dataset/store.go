package dataset

import (
	"context"
	"sync"
	"time"

	"github.com/JoacoLucen/EPH-Insight-App/internal/analytics"
	"github.com/JoacoLucen/EPH-Insight-App/internal/codebook"
	"github.com/JoacoLucen/EPH-Insight-App/internal/events"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Snapshot is an immutable, fully derived dataset ready for queries.
type Snapshot struct {
	Fingerprint string
	LoadedAt    time.Time
	Dataset     *microdata.Dataset
	Engine      *analytics.Engine
}

// Report returns the load report of the snapshot.
func (s *Snapshot) Report() microdata.LoadReport {
	return s.Dataset.Report
}

// Store keeps the current snapshot and memoizes earlier ones by fingerprint,
// so reloading an unchanged source does not parse it again.
type Store struct {
	loader   *Loader
	codebook *codebook.Codebook
	bus      events.Bus
	log      *logger.Logger

	memo  *gocache.Cache
	group singleflight.Group

	mu      sync.RWMutex
	current *Snapshot
}

// NewStore creates a store. Memoized snapshots expire after ttl.
func NewStore(loader *Loader, cb *codebook.Codebook, bus events.Bus, ttl time.Duration, log *logger.Logger) *Store {
	return &Store{
		loader:   loader,
		codebook: cb,
		bus:      bus,
		log:      log,
		memo:     gocache.New(ttl, ttl*2),
	}
}

// Current returns the current snapshot, or an Unavailable error before the
// first successful load.
func (s *Store) Current() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, apperr.Unavailable("dataset not loaded yet")
	}
	return s.current, nil
}

// Ping reports whether a snapshot is being served.
func (s *Store) Ping(context.Context) error {
	_, err := s.Current()
	return err
}

// Fingerprint returns the identity of the source as it is now.
func (s *Store) Fingerprint(ctx context.Context) (string, error) {
	fp, _, err := s.loader.Fingerprint(ctx)
	return fp, err
}

// Reload makes the source's current content the current snapshot. Concurrent
// calls share one load.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	v, err, _ := s.group.Do("reload", func() (interface{}, error) {
		return s.reload(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (s *Store) reload(ctx context.Context) (*Snapshot, error) {
	fp, entries, err := s.loader.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.memo.Get(fp); ok {
		snap := cached.(*Snapshot)
		s.swap(ctx, snap, true)
		return snap, nil
	}

	ds, err := s.loader.Load(ctx, entries)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Fingerprint: fp,
		LoadedAt:    time.Now(),
		Dataset:     ds,
		Engine:      analytics.New(ds, s.codebook),
	}
	s.memo.Set(fp, snap, gocache.DefaultExpiration)
	s.swap(ctx, snap, false)
	return snap, nil
}

func (s *Store) swap(ctx context.Context, snap *Snapshot, fromCache bool) {
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()

	periods := snap.Engine.Periods()
	labels := make([]string, 0, len(periods))
	for _, p := range periods {
		labels = append(labels, p.String())
	}
	s.log.DatasetLoaded(snap.Fingerprint, len(snap.Dataset.Individuals), len(snap.Dataset.Households), len(periods))
	if s.bus != nil {
		s.bus.Publish(ctx, events.DatasetLoaded{
			BaseEvent:   events.NewBaseEvent(),
			Fingerprint: snap.Fingerprint,
			Individuals: len(snap.Dataset.Individuals),
			Households:  len(snap.Dataset.Households),
			Periods:     labels,
			Excluded:    snap.Dataset.Report.Exclusions.Total(),
			FromCache:   fromCache,
		})
	}
}
