package raster

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
)

// FileSource loads a processing year's hourly stacks from per-year NetCDF
// files on disk. Rebasing to local time needs hours from an adjacent UTC
// year: the prior year when local time runs ahead of UTC, the next year when
// it runs behind. The source reads whichever neighbor the offset requires and
// concatenates it in time order.
type FileSource struct {
	DataDir        string
	FilePattern    string // fmt pattern with one %d year verb
	VarNames       map[domain.Variable]string
	UTCOffsetHours int
	Logger         *slog.Logger
}

// LoadYear reads and concatenates the files covering year, verifying that all
// variables come out aligned.
func (fs *FileSource) LoadYear(_ context.Context, year int) (map[domain.Variable]*Stack, error) {
	years := []int{year}
	switch {
	case fs.UTCOffsetHours > 0:
		years = []int{year - 1, year}
	case fs.UTCOffsetHours < 0:
		years = []int{year, year + 1}
	}

	var stacks map[domain.Variable]*Stack
	for _, y := range years {
		path := filepath.Join(fs.DataDir, fmt.Sprintf(fs.FilePattern, y))
		if _, err := os.Stat(path); err != nil {
			return nil, domain.Dimensionf(year, "input file %s: %v", path, err)
		}

		fileStacks, err := ReadFile(path, fs.VarNames)
		if err != nil {
			return nil, err
		}
		fs.Logger.Debug("raster file loaded", "path", path,
			"layers", len(fileStacks[domain.VarTemperature].Layers))

		if stacks == nil {
			stacks = fileStacks
			continue
		}
		for v, s := range stacks {
			if err := s.Append(fileStacks[v]); err != nil {
				return nil, domain.Dimensionf(year, "%v", err)
			}
		}
	}

	if err := VerifyAligned(year, stacks); err != nil {
		return nil, err
	}
	return stacks, nil
}
