// Command aggregate runs the ERA5 daily heat aggregation pipeline: hourly
// gridded temperatures in, one daily CSV or Parquet file per year out.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/aggregate"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/config"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/grid"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/observability"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/overlay"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/pipeline"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/raster"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/sample"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/sink"
)

func main() {
	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *observability.Server
	if cfg.MetricsAddr != "" {
		srv = observability.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	err = run(ctx, cfg, logger, metrics)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if sErr := srv.Shutdown(shutdownCtx); sErr != nil {
			logger.Error("metrics server shutdown error", "error", sErr)
		}
	}

	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("run complete")
}

// run builds the geometry once, then processes every configured year.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	years := cfg.Years()

	// The fishnet, overlay, and extraction points depend only on the raster
	// grid and the boundary file, so they are built once from the first
	// year's geometry and shared across years. A later year whose grid
	// differs is rejected when the sampler compares each daily stack's
	// geometry against this one.
	firstFile := filepath.Join(cfg.DataDir, fmt.Sprintf(cfg.FilePattern, years[0]))
	geo, err := raster.ReadGeometry(firstFile)
	if err != nil {
		return err
	}
	logger.Info("raster grid read", "rows", geo.Rows(), "cols", geo.Cols(), "file", firstFile)

	units, err := overlay.LoadBoundaries(cfg.BoundaryFile, cfg.IDField, cfg.Admin1Field, cfg.Admin0Field, geo.Proj)
	if err != nil {
		return err
	}
	logger.Info("boundaries loaded", "units", len(units), "file", cfg.BoundaryFile)

	cells := grid.Fishnet(geo)
	result, err := overlay.Overlay(cells, grid.Extent(geo), units, cfg.SliverThreshold)
	if err != nil {
		return err
	}
	metrics.SubPolygonsRetained.Set(float64(len(result.Retained)))
	metrics.SliversDropped.Set(float64(result.SliversDropped))
	metrics.UnassignedDropped.Set(float64(result.UnassignedDropped))
	logger.Info("overlay computed",
		"retained", len(result.Retained),
		"slivers_dropped", result.SliversDropped,
		"unassigned_dropped", result.UnassignedDropped,
	)

	points, err := overlay.ExtractionPoints(result.Retained)
	if err != nil {
		return err
	}

	refMonth, refDay, err := config.ParseMonthDay(cfg.ReferenceDate)
	if err != nil {
		return err
	}

	source := &raster.FileSource{
		DataDir:     cfg.DataDir,
		FilePattern: cfg.FilePattern,
		VarNames: map[domain.Variable]string{
			domain.VarTemperature: cfg.TempVar,
			domain.VarDewPoint:    cfg.DewVar,
			domain.VarSkinTemp:    cfg.SkinVar,
		},
		UTCOffsetHours: cfg.UTCOffsetHours,
		Logger:         logger,
	}
	sampler := sample.NewSampler(points, geo, logger)
	aggregator := aggregate.NewAggregator(points, cfg.WeightTolerance)
	out, err := sink.New(cfg.OutputFormat, cfg.OutputDir)
	if err != nil {
		return err
	}

	p := pipeline.New(source, sampler, aggregator, out, logger, metrics,
		cfg.UTCOffsetHours, refMonth, refDay)
	return p.Run(ctx, years)
}
