package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"civigate/internal/config"
	"civigate/internal/domain/models"
	"civigate/internal/infrastructure/cache"
	"civigate/internal/upstream"
	"civigate/pkg/logger"
)

const reportCacheTTL = 2 * time.Minute

// TrackingService resolves a citizen's search term to a full report
// timeline. Lookups run against the upstream's role-scoped read routes
// through the ordered fallback walk.
type TrackingService struct {
	client       *upstream.Client
	cache        *cache.RedisCache
	readPrefixes []string
	logger       *logger.Logger
}

// NewTrackingService creates a report tracking service. cache may be nil,
// in which case every lookup goes upstream.
func NewTrackingService(client *upstream.Client, c *cache.RedisCache, cfg config.UpstreamConfig, log *logger.Logger) *TrackingService {
	return &TrackingService{
		client:       client,
		cache:        c,
		readPrefixes: cfg.ReadEndpoints,
		logger:       log.WithComponent("tracking"),
	}
}

// TrackByCode fetches the full report detail for a canonical tracking
// code. The returned timeline is ordered by occurrence time; the upstream
// gives no ordering guarantee.
func (s *TrackingService) TrackByCode(ctx context.Context, code string) (*models.Report, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.ErrNotFound
	}

	if s.cache != nil {
		var cached models.Report
		if err := s.cache.GetCachedReport(ctx, code, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Debug().Err(err).Msg("report cache read failed")
		}
	}

	report, err := s.client.ReportByCode(ctx, s.readPrefixes, code)
	if err != nil {
		return nil, err
	}
	report.SortStatusHistory()

	if s.cache != nil {
		if err := s.cache.CacheReport(ctx, code, report, reportCacheTTL); err != nil {
			s.logger.Debug().Err(err).Msg("report cache write failed")
		}
	}

	return report, nil
}

// TrackByTitleFragment resolves free text to a report in two hops: the
// search endpoint returns partial title matches, the first match's
// canonical code then drives the detail fetch. The search endpoint only
// returns partial records, so the second hop is never skipped.
func (s *TrackingService) TrackByTitleFragment(ctx context.Context, text string) (*models.Report, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.ErrNotFound
	}

	matches, err := s.client.SearchByTitle(ctx, s.readPrefixes, text)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, models.ErrNotFound
	}

	return s.TrackByCode(ctx, matches[0].TrackingCode)
}

// ListRecent reads the report list through the fallback walk, for the
// staff dashboard.
func (s *TrackingService) ListRecent(ctx context.Context, page, pageSize int) ([]upstream.ReportSummary, *upstream.Pagination, error) {
	return s.client.ListReports(ctx, s.readPrefixes, page, pageSize)
}
