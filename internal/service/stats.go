package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

// StatsCache is an optional short-lived store for the dashboard numbers.
type StatsCache interface {
	GetStats(ctx context.Context) (model.Stats, bool, error)
	SetStats(ctx context.Context, stats model.Stats) error
}

// StatsService computes the admin dashboard aggregates. The numbers are
// allowed to be slightly stale.
type StatsService struct {
	store  *repository.Store
	cache  StatsCache
	logger *slog.Logger
}

// NewStatsService accepts a nil cache, which disables caching.
func NewStatsService(store *repository.Store, cache StatsCache, logger *slog.Logger) *StatsService {
	return &StatsService{store: store, cache: cache, logger: logger}
}

func (s *StatsService) Get(ctx context.Context) (model.Stats, error) {
	if s.cache != nil {
		stats, ok, err := s.cache.GetStats(ctx)
		if err != nil {
			s.logger.Warn("stats cache read failed", slog.String("error", err.Error()))
		} else if ok {
			return stats, nil
		}
	}

	stats, err := s.compute(ctx)
	if err != nil {
		s.logger.Error("failed to compute stats", slog.String("error", err.Error()))
		return model.Stats{}, fmt.Errorf("computing stats: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetStats(ctx, stats); err != nil {
			s.logger.Warn("stats cache write failed", slog.String("error", err.Error()))
		}
	}
	return stats, nil
}

// compute runs the four reads concurrently; each goroutine owns one field.
func (s *StatsService) compute(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.TotalUsers, err = s.store.Users.CountUsers(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.ApprovedCourses, err = s.store.Courses.CountCourses(ctx, model.CourseApproved)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalEnrollments, err = s.store.Enrollments.CountEnrollments(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalRevenue, err = s.store.Enrollments.SumEnrollmentPrice(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return model.Stats{}, err
	}
	return stats, nil
}
