package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/PascalRepond/rero-mef/internal/marc"
	"github.com/PascalRepond/rero-mef/internal/metrics"
	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/oai"
	"github.com/PascalRepond/rero-mef/internal/repository"
)

// ErrSourceNotConfigured is returned when a harvest source has no
// configuration row.
var ErrSourceNotConfigured = errors.New("oai source not configured")

// defaultWindowDays bounds a single selective OAI request. Sources
// cap their result sets, so long ranges are walked in day spans.
const defaultWindowDays = 30

// HarvestService drives incremental OAI-PMH harvests into the stores.
type HarvestService struct {
	repo    *repository.Repository
	client  *oai.Client
	mef     *MEFService
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewHarvestService creates a new HarvestService.
func NewHarvestService(repo *repository.Repository, client *oai.Client, mef *MEFService, recorder metrics.Recorder, logger *slog.Logger) *HarvestService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &HarvestService{
		repo:    repo,
		client:  client,
		mef:     mef,
		metrics: recorder,
		logger:  logger,
	}
}

// HarvestOptions tunes one harvest run.
type HarvestOptions struct {
	// From and Until bound the harvest. A zero From falls back to the
	// source's last run, then to the repository's earliest datestamp.
	From  time.Time
	Until time.Time
	// Split selects how the range is cut into ListRecords requests:
	// SplitWeekly, SplitMonthly, or day spans of WindowDays.
	Split string
	// WindowDays bounds a single ListRecords request when Split is
	// empty.
	WindowDays int
	// SaveTo mirrors the raw MARCXML instead of writing to the stores.
	SaveTo io.Writer
}

// Window split modes for HarvestOptions.Split.
const (
	SplitWeekly  = "weekly"
	SplitMonthly = "monthly"
)

// HarvestStats reports the outcome of a harvest run.
type HarvestStats struct {
	Records int
	Actions map[model.Action]int
	Errors  int
}

// Harvest runs an incremental harvest for one configured source. On
// success the source's last run moves to the upper bound.
func (s *HarvestService) Harvest(ctx context.Context, name string, opts HarvestOptions) (HarvestStats, error) {
	stats := HarvestStats{Actions: map[model.Action]int{}}

	entity, err := model.ParseEntity(name)
	if err != nil {
		return stats, err
	}
	transformer, err := marc.TransformerFor(entity)
	if err != nil {
		return stats, err
	}

	src, err := s.repo.GetOAISource(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrOAISourceNotFound) {
			return stats, fmt.Errorf("%w: %s", ErrSourceNotConfigured, name)
		}
		return stats, err
	}

	until := opts.Until
	if until.IsZero() {
		until = time.Now().UTC()
	}
	from, err := s.harvestFrom(ctx, src, opts.From)
	if err != nil {
		return stats, err
	}

	windows, err := splitWindows(oai.Window{From: from, Until: until}, opts)
	if err != nil {
		return stats, err
	}

	for _, w := range windows {
		start := time.Now()
		req := oai.Request{
			Endpoint: src.BaseURL,
			Prefix:   src.MetadataPrefix,
			Set:      src.SetSpecs,
			From:     w.From,
			Until:    w.Until,
		}
		s.logger.Info("harvest window",
			slog.String("source", name),
			slog.Time("from", w.From),
			slog.Time("until", w.Until),
		)

		if opts.SaveTo != nil {
			if err := s.client.ListRecordsRaw(ctx, req, opts.SaveTo); err != nil {
				return stats, err
			}
			s.metrics.ObserveHarvestWindow(name, time.Since(start))
			continue
		}

		err := s.client.ListRecords(ctx, req, func(rec *marc.Record) error {
			stats.Records++
			s.metrics.IncHarvestedRecord(name)

			doc, err := transformer.Transform(rec)
			if err != nil {
				if errors.Is(err, marc.ErrNoTransformation) {
					stats.Errors++
					s.metrics.IncHarvestError(name)
					return nil
				}
				return err
			}
			action, _, err := s.mef.SaveAgent(ctx, entity, doc)
			if err != nil {
				return err
			}
			stats.Actions[action]++
			return nil
		})
		if err != nil {
			return stats, err
		}
		s.metrics.ObserveHarvestWindow(name, time.Since(start))
	}

	if opts.SaveTo == nil {
		if err := s.repo.SetOAILastRun(ctx, name, until); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// splitWindows cuts the harvest range into selective request spans.
func splitWindows(w oai.Window, opts HarvestOptions) ([]oai.Window, error) {
	switch opts.Split {
	case SplitWeekly:
		return w.Weekly()
	case SplitMonthly:
		return w.Monthly()
	case "":
		days := opts.WindowDays
		if days <= 0 {
			days = defaultWindowDays
		}
		return w.Days(days)
	}
	return nil, fmt.Errorf("unknown window split %q", opts.Split)
}

// harvestFrom picks the lower harvest bound: explicit, else the last
// run with a one day overlap, else the repository's earliest datestamp.
func (s *HarvestService) harvestFrom(ctx context.Context, src model.OAISource, explicit time.Time) (time.Time, error) {
	if !explicit.IsZero() {
		return explicit, nil
	}
	if !src.LastRun.IsZero() {
		return src.LastRun.AddDate(0, 0, -1), nil
	}
	resp, err := s.client.Identify(ctx, src.BaseURL)
	if err != nil {
		return time.Time{}, fmt.Errorf("identify %s: %w", src.Name, err)
	}
	earliest, err := parseDatestamp(resp.Identify.EarliestDatestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("identify %s: %w", src.Name, err)
	}
	return earliest, nil
}

// InitSources loads harvest configurations from a YAML file into the
// database, keeping last run timestamps of known sources.
func (s *HarvestService) InitSources(ctx context.Context, path string) (int, error) {
	sources, err := oai.LoadSourcesFile(path)
	if err != nil {
		return 0, err
	}
	for _, src := range sources {
		if err := s.repo.UpsertOAISource(ctx, src); err != nil {
			return 0, err
		}
	}
	return len(sources), nil
}

// parseDatestamp accepts the two OAI granularities.
func parseDatestamp(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
