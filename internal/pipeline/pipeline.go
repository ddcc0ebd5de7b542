package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/heat"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/observability"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/raster"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/sample"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/temporal"
)

// RasterSource loads one processing year's hourly stacks, including the
// look-behind and look-ahead hours needed for local-time rebasing.
type RasterSource interface {
	LoadYear(ctx context.Context, year int) (map[domain.Variable]*raster.Stack, error)
}

// PointSampler reads daily layers at the extraction points and fills
// uncovered points from their nearest covered neighbor.
type PointSampler interface {
	Sample(daily *temporal.DailyStack) (*sample.Sampled, error)
	GapFill(year int, sampled map[domain.Variable]*sample.Sampled, refMonth, refDay int) (int, error)
}

// Aggregator collapses sampled point series into output records.
type Aggregator interface {
	Aggregate(year int, sampled map[domain.Variable]*sample.Sampled) ([]*domain.DailyRecord, *domain.AnomalyReport, error)
}

// Sink persists one year's records.
type Sink interface {
	WriteYear(year int, records []*domain.DailyRecord) (string, error)
	Format() string
}

// Pipeline orchestrates the per-year load-derive-reduce-sample-aggregate-write
// sequence.
type Pipeline struct {
	source     RasterSource
	sampler    PointSampler
	aggregator Aggregator
	sink       Sink
	logger     *slog.Logger
	metrics    *observability.Metrics

	utcOffsetHours   int
	refMonth, refDay int
}

// New creates a Pipeline with the given stages and observability.
func New(src RasterSource, smp PointSampler, agg Aggregator, snk Sink,
	logger *slog.Logger, metrics *observability.Metrics,
	utcOffsetHours, refMonth, refDay int) *Pipeline {
	return &Pipeline{
		source:         src,
		sampler:        smp,
		aggregator:     agg,
		sink:           snk,
		logger:         logger,
		metrics:        metrics,
		utcOffsetHours: utcOffsetHours,
		refMonth:       refMonth,
		refDay:         refDay,
	}
}

// Run processes each year in order. A dimensional failure skips to the next
// year; any other failure aborts the run, since geometry or bookkeeping
// problems would corrupt every remaining year the same way.
func (p *Pipeline) Run(ctx context.Context, years []int) error {
	p.logger.Info("pipeline started", "years", len(years), "utc_offset_hours", p.utcOffsetHours)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for _, year := range years {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline stopping", "reason", err)
			return err
		}

		start := time.Now()
		if err := p.processYear(ctx, year); err != nil {
			p.metrics.YearsFailed.Inc()
			if domain.FatalForRun(err) {
				p.logger.Error("year failed, aborting run", "year", year, "error", err)
				return fmt.Errorf("process year %d: %w", year, err)
			}
			p.logger.Warn("year skipped", "year", year, "error", err)
			continue
		}
		p.metrics.YearsCompleted.Inc()
		p.metrics.YearProcessingDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (p *Pipeline) processYear(ctx context.Context, year int) error {
	stacks, err := p.source.LoadYear(ctx, year)
	if err != nil {
		return err
	}
	p.logger.Info("rasters loaded", "year", year,
		"hours", len(stacks[domain.VarTemperature].Layers))

	heatIndex, humidex := heat.Derive(stacks[domain.VarTemperature], stacks[domain.VarDewPoint])
	stacks[domain.VarHeatIndex] = heatIndex
	stacks[domain.VarHumidex] = humidex

	dailies := make(map[domain.Variable]*temporal.DailyStack, len(stacks))
	for v, s := range stacks {
		daily, err := temporal.Reduce(year, s, p.utcOffsetHours)
		if err != nil {
			return err
		}
		dailies[v] = daily
	}
	if err := temporal.VerifyDays(year, dailies); err != nil {
		return err
	}

	sampled := make(map[domain.Variable]*sample.Sampled, len(dailies))
	for v, d := range dailies {
		sampled[v], err = p.sampler.Sample(d)
		if err != nil {
			return err
		}
	}
	filled, err := p.sampler.GapFill(year, sampled, p.refMonth, p.refDay)
	if err != nil {
		return err
	}
	p.metrics.PointsGapFilled.Set(float64(filled))

	records, report, err := p.aggregator.Aggregate(year, sampled)
	if err != nil {
		return err
	}
	p.metrics.MissingResults.Add(float64(report.MissingResults))
	p.metrics.OrderingViolations.Add(float64(len(report.OrderingViolations)))
	if !report.Clean() {
		p.logger.Warn("output anomalies detected", "year", year,
			"missing_results", report.MissingResults,
			"ordering_violations", len(report.OrderingViolations),
			"examples", report.Examples(5),
		)
	}

	path, err := p.sink.WriteYear(year, records)
	if err != nil {
		return err
	}
	p.metrics.RecordsWritten.WithLabelValues(p.sink.Format()).Add(float64(len(records)))
	p.logger.Info("year written", "year", year, "records", len(records), "path", path, "points_gap_filled", filled)
	return nil
}
