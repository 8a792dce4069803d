// Package pipeline orchestrates the nightly crawl: harvest both search
// segments, parse every detail page, validate, merge, and reconcile the
// snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quirkauto/inventory-crawler/internal/history"
	"github.com/quirkauto/inventory-crawler/internal/inventory"
	"github.com/quirkauto/inventory-crawler/internal/metrics"
	"github.com/quirkauto/inventory-crawler/internal/notify"
	"github.com/quirkauto/inventory-crawler/internal/robots"
)

// ErrTooFewVehicles is returned when a run collects fewer vehicles than the
// guardrail minimum. The prior snapshot is left untouched.
var ErrTooFewVehicles = errors.New("implausibly small inventory")

// Harvester walks an SRP segment and returns candidate detail-page URLs.
type Harvester interface {
	Harvest(ctx context.Context, startURL string) ([]string, error)
}

// VehicleParser turns one detail page into a vehicle record.
type VehicleParser interface {
	Parse(ctx context.Context, vdpURL string, override inventory.StockType) (inventory.Vehicle, error)
}

// RunRecorder persists run history. Satisfied by *history.RunStore.
type RunRecorder interface {
	RecordRun(ctx context.Context, record history.RunRecord) error
}

// Config carries the crawl entry points and guardrail settings.
type Config struct {
	NewSRP      string
	UsedSRP     string
	VDPPause    time.Duration
	MinVehicles int
	Topic       string
}

// Deps groups the pipeline's collaborators. History and Notifier are
// optional; a nil value disables that side effect.
type Deps struct {
	Harvester Harvester
	Parser    VehicleParser
	Snapshot  *inventory.SnapshotManager
	Merge     inventory.MergePolicy
	History   RunRecorder
	Notifier  notify.Publisher
	Logger    *zap.Logger
}

// Result summarizes one run.
type Result struct {
	RunID    string
	Decision inventory.WriteDecision
	Dropped  int
	Duration time.Duration
}

// Runner executes the crawl end to end.
type Runner struct {
	cfg  Config
	deps Deps
}

// NewRunner builds a Runner from its collaborators.
func NewRunner(cfg Config, deps Deps) *Runner {
	return &Runner{cfg: cfg, deps: deps}
}

type segment struct {
	startURL string
	stock    inventory.StockType
}

type segmentResult struct {
	stock    inventory.StockType
	vehicles []inventory.Vehicle
	dropped  int
	err      error
}

// Run crawls both segments, merges and validates the results, and reconciles
// the snapshot. On guardrail trip it records the run and returns
// ErrTooFewVehicles without touching the snapshot.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	started := time.Now()
	logger := r.deps.Logger.With(zap.String("run_id", runID))
	logger.Info("Starting inventory crawl",
		zap.String("new_srp", r.cfg.NewSRP), zap.String("used_srp", r.cfg.UsedSRP))

	segments := []segment{
		{startURL: r.cfg.NewSRP, stock: inventory.StockTypeNew},
		{startURL: r.cfg.UsedSRP, stock: inventory.StockTypeUsed},
	}
	results := make(chan segmentResult, len(segments))
	for _, seg := range segments {
		go func(seg segment) {
			results <- r.collectSegment(ctx, logger, seg)
		}(seg)
	}

	bySegment := make(map[inventory.StockType]segmentResult, len(segments))
	var fatal error
	for range segments {
		res := <-results
		bySegment[res.stock] = res
		if res.err != nil && fatal == nil {
			fatal = res.err
		}
	}
	if fatal != nil {
		r.recordHistory(ctx, logger, history.RunRecord{
			ID: runID, StartedAt: started, FinishedAt: time.Now(), Status: history.StatusFailed,
		})
		return Result{RunID: runID}, fatal
	}

	newSeg := bySegment[inventory.StockTypeNew]
	usedSeg := bySegment[inventory.StockTypeUsed]
	dropped := newSeg.dropped + usedSeg.dropped

	combined := r.deps.Merge.Merge(newSeg.vehicles, usedSeg.vehicles)
	if len(combined) < r.cfg.MinVehicles {
		logger.Error("Guardrail tripped; keeping prior snapshot",
			zap.Int("collected", len(combined)), zap.Int("minimum", r.cfg.MinVehicles))
		r.recordHistory(ctx, logger, history.RunRecord{
			ID: runID, StartedAt: started, FinishedAt: time.Now(),
			Total: len(combined), Status: history.StatusGuardrail,
		})
		return Result{RunID: runID, Dropped: dropped},
			fmt.Errorf("collected %d vehicles, need at least %d: %w",
				len(combined), r.cfg.MinVehicles, ErrTooFewVehicles)
	}

	decision, err := r.deps.Snapshot.Reconcile(combined)
	if err != nil {
		r.recordHistory(ctx, logger, history.RunRecord{
			ID: runID, StartedAt: started, FinishedAt: time.Now(),
			Total: len(combined), Status: history.StatusFailed,
		})
		return Result{RunID: runID, Dropped: dropped}, fmt.Errorf("reconcile snapshot: %w", err)
	}

	finished := time.Now()
	logger.Info("Crawl complete",
		zap.Int("total", decision.Total),
		zap.Int("added", len(decision.AddedVINs)),
		zap.Int("removed", len(decision.RemovedVINs)),
		zap.Strings("added_vins", sampleVINs(decision.AddedVINs)),
		zap.Strings("removed_vins", sampleVINs(decision.RemovedVINs)),
		zap.Int("dropped", dropped),
		zap.Bool("wrote", decision.Wrote),
		zap.Duration("duration", finished.Sub(started)))

	r.recordHistory(ctx, logger, history.RunRecord{
		ID:           runID,
		StartedAt:    started,
		FinishedAt:   finished,
		Total:        decision.Total,
		AddedVINs:    decision.AddedVINs,
		RemovedVINs:  decision.RemovedVINs,
		WroteChanges: decision.Wrote,
		Status:       history.StatusOK,
	})
	if decision.Wrote {
		r.publishChange(ctx, logger, notify.ChangeEvent{
			RunID:       runID,
			FinishedAt:  finished,
			Total:       decision.Total,
			AddedVINs:   decision.AddedVINs,
			RemovedVINs: decision.RemovedVINs,
		})
	}

	return Result{
		RunID:    runID,
		Decision: decision,
		Dropped:  dropped,
		Duration: finished.Sub(started),
	}, nil
}

// collectSegment harvests one SRP segment and parses every candidate page.
// Individual page failures are skipped; only a harvest error is fatal.
func (r *Runner) collectSegment(ctx context.Context, logger *zap.Logger, seg segment) segmentResult {
	urls, err := r.deps.Harvester.Harvest(ctx, seg.startURL)
	if err != nil {
		return segmentResult{stock: seg.stock, err: fmt.Errorf("harvest %s segment: %w", seg.stock, err)}
	}
	logger.Info("Harvested candidate pages",
		zap.String("segment", string(seg.stock)), zap.Int("candidates", len(urls)))

	var vehicles []inventory.Vehicle
	dropped := 0
	for i, vdpURL := range urls {
		if i > 0 {
			if err := pause(ctx, r.cfg.VDPPause); err != nil {
				return segmentResult{stock: seg.stock, err: err}
			}
		}
		vehicle, err := r.deps.Parser.Parse(ctx, vdpURL, seg.stock)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || isFatalParse(err) {
				return segmentResult{stock: seg.stock, err: err}
			}
			logger.Warn("Skipping detail page",
				zap.String("url", vdpURL), zap.Error(err))
			dropped++
			continue
		}
		if violations := inventory.Validate(vehicle); len(violations) > 0 {
			for _, violation := range violations {
				logger.Warn("Dropping invalid vehicle",
					zap.String("url", vdpURL),
					zap.String("vin", vehicle.VIN),
					zap.String("violation", violation.String()))
			}
			metrics.ValidationFailures.Inc()
			dropped++
			continue
		}
		vehicles = append(vehicles, vehicle)
	}

	return segmentResult{stock: seg.stock, vehicles: vehicles, dropped: dropped}
}

func (r *Runner) recordHistory(ctx context.Context, logger *zap.Logger, record history.RunRecord) {
	if r.deps.History == nil {
		return
	}
	if err := r.deps.History.RecordRun(ctx, record); err != nil {
		logger.Warn("Failed to record run history", zap.Error(err))
	}
}

func (r *Runner) publishChange(ctx context.Context, logger *zap.Logger, event notify.ChangeEvent) {
	if r.deps.Notifier == nil {
		return
	}
	id, err := r.deps.Notifier.Publish(ctx, r.cfg.Topic, event)
	if err != nil {
		logger.Warn("Failed to publish change event", zap.Error(err))
		return
	}
	logger.Info("Published change event", zap.String("message_id", id))
}

// vinSampleLimit caps how many churned VINs the summary names; the full
// lists still go to run history.
const vinSampleLimit = 10

func sampleVINs(vins []string) []string {
	if len(vins) <= vinSampleLimit {
		return vins
	}
	return vins[:vinSampleLimit]
}

// isFatalParse reports whether a parse error should abort the whole segment
// instead of skipping one page.
func isFatalParse(err error) bool {
	return errors.Is(err, robots.ErrDisallowed)
}

func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
