package service

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const warmConcurrency = 4

// Warm precomputes the reports that need no caller input, plus the
// latest-period variants, so the first requests after a reload hit the
// cache. It does nothing when the current snapshot is no longer the one
// identified by fingerprint.
func (s *Service) Warm(ctx context.Context, fingerprint string) (int, error) {
	snap, err := s.store.Current()
	if err != nil {
		return 0, err
	}
	if snap.Fingerprint != fingerprint {
		s.log.Info("skipping report warm-up for superseded snapshot", "fingerprint", fingerprint, "current", snap.Fingerprint)
		return 0, nil
	}

	jobs := []func(context.Context) error{
		warmJob(s.TopHigherEducatedHouseholds),
		warmJob(s.UniversityAttendance),
		warmJob(latest(s.Literacy)),
		warmJob(s.LiteracyByYear),
		warmJob(s.UnemploymentByPeriod),
		warmJob(s.LowestUnemployment),
		warmJob(s.EmploymentRatesByYear),
		warmJob(s.EmploymentRatesByCluster),
		warmJob(s.RetireesInInsufficientHousing),
		warmJob(s.OwnerOccupied),
		warmJob(s.TenantsByRegion),
		warmJob(s.BathroomlessCrowded),
		warmJob(latest(s.Habitability)),
		warmJob(latest(s.DwellingTypes)),
		warmJob(latest(s.AverageAge)),
		warmJob(s.AgeEvolution),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, job := range jobs {
		g.Go(func() error { return job(gctx) })
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	s.log.Info("report cache warmed", "fingerprint", fingerprint, "reports", len(jobs))
	return len(jobs), nil
}

func warmJob[T any](fn func(context.Context) (T, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	}
}

// latest binds a period-scoped report to the latest loaded period.
func latest[T any](fn func(context.Context, string) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return fn(ctx, "")
	}
}
