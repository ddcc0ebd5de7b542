package raster

import (
	"fmt"
	"math"
	"strings"
	"time"

	"bitbucket.org/ctessum/sparse"
	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
)

const kelvinOffset = 273.15

// ERA5's legacy time axis counts hours since 1900-01-01T00:00Z.
const unixSecs1900 = -2208988800

// ERA5 is geographic coordinates on WGS84.
const era5Proj = "+proj=longlat +datum=WGS84 +no_defs"

// ReadFile reads one ERA5 NetCDF file and returns a stack per requested
// variable, all in Celsius with missing cells as NaN. varNames maps each
// pipeline variable to the substring that identifies its layer name in the
// file (e.g. "t2m"); a substring that matches no variable, or more than one,
// is a configuration error.
func ReadFile(path string, varNames map[domain.Variable]string) (map[domain.Variable]*Stack, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	geo, err := readGeometry(nc, path)
	if err != nil {
		return nil, err
	}
	times, err := readTimes(nc, path)
	if err != nil {
		return nil, err
	}

	stacks := make(map[domain.Variable]*Stack, len(varNames))
	for v, sub := range varNames {
		name, err := matchVariable(nc, sub)
		if err != nil {
			return nil, domain.Configf("%s in %s: %w", v, path, err)
		}
		layers, err := readLayers(nc, name, times, geo)
		if err != nil {
			return nil, fmt.Errorf("read %s (%s) from %s: %w", v, name, path, err)
		}
		stacks[v] = &Stack{Variable: v, Geometry: geo, Layers: layers}
	}
	return stacks, nil
}

// ReadGeometry reads only the coordinate axes of a raster file. The fishnet
// grid and overlay are built from the first year's geometry before any layer
// data is loaded.
func ReadGeometry(path string) (*GridGeometry, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()
	return readGeometry(nc, path)
}

func readGeometry(nc api.Group, path string) (*GridGeometry, error) {
	lats, err := axisValues(nc, "latitude", "lat")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lons, err := axisValues(nc, "longitude", "lon")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(lats) < 2 || len(lons) < 2 {
		return nil, fmt.Errorf("%s: axes too short (%d lat, %d lon)", path, len(lats), len(lons))
	}
	return &GridGeometry{Lats: lats, Lons: lons, Proj: era5Proj}, nil
}

// readTimes reads the UTC time axis: "valid_time" in epoch seconds on current
// archive files, or "time" in hours since 1900 on legacy ones.
func readTimes(nc api.Group, path string) ([]time.Time, error) {
	if vg, err := nc.GetVarGetter("valid_time"); err == nil {
		secs, err := valuesAsFloat64(vg)
		if err != nil {
			return nil, fmt.Errorf("%s: valid_time: %w", path, err)
		}
		out := make([]time.Time, len(secs))
		for i, s := range secs {
			out[i] = time.Unix(int64(s), 0).UTC()
		}
		return out, nil
	}

	vg, err := nc.GetVarGetter("time")
	if err != nil {
		return nil, fmt.Errorf("%s: no valid_time or time axis", path)
	}
	hours, err := valuesAsFloat64(vg)
	if err != nil {
		return nil, fmt.Errorf("%s: time: %w", path, err)
	}
	out := make([]time.Time, len(hours))
	for i, h := range hours {
		out[i] = time.Unix(int64(h)*3600+unixSecs1900, 0).UTC()
	}
	return out, nil
}

// matchVariable finds the single dataset variable whose name contains sub,
// ignoring coordinate axes.
func matchVariable(nc api.Group, sub string) (string, error) {
	axes := map[string]bool{
		"latitude": true, "longitude": true, "lat": true, "lon": true,
		"time": true, "valid_time": true, "expver": true, "number": true,
	}
	var matches []string
	for _, name := range nc.ListVariables() {
		if axes[name] {
			continue
		}
		if strings.Contains(name, sub) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no variable matches %q", sub)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("substring %q is ambiguous: matches %s", sub, strings.Join(matches, ", "))
	}
}

// readLayers reads one 2-D grid per timestep, unpacking int16 storage and
// converting Kelvin to Celsius. Fill values become NaN.
func readLayers(nc api.Group, name string, times []time.Time, geo *GridGeometry) ([]Layer, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	if n := int(vg.Len()); n != len(times) {
		return nil, fmt.Errorf("time axis has %d steps but variable has %d", len(times), n)
	}

	scale, hasScale := attrFloat(vg.Attributes(), "scale_factor")
	offset, _ := attrFloat(vg.Attributes(), "add_offset")
	fill, hasFill := attrFloat(vg.Attributes(), "_FillValue")
	if !hasFill {
		fill, hasFill = attrFloat(vg.Attributes(), "missing_value")
	}
	if !hasScale {
		scale = 1
	}

	rows, cols := geo.Rows(), geo.Cols()
	layers := make([]Layer, len(times))
	for t := range times {
		sl, err := vg.GetSlice(int64(t), int64(t)+1)
		if err != nil {
			return nil, fmt.Errorf("timestep %d: %w", t, err)
		}
		grid, err := gridAt(sl, rows, cols)
		if err != nil {
			return nil, fmt.Errorf("timestep %d: %w", t, err)
		}

		data := sparse.ZerosDense(rows, cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				raw := grid[i][j]
				if hasFill && raw == fill {
					data.Elements[i*cols+j] = math.NaN()
					continue
				}
				data.Elements[i*cols+j] = raw*scale + offset - kelvinOffset
			}
		}
		layers[t] = Layer{Time: times[t], Data: data}
	}
	return layers, nil
}

// gridAt normalizes one [1][rows][cols] timestep slice to [][]float64,
// whatever the on-disk numeric type.
func gridAt(sl any, rows, cols int) ([][]float64, error) {
	var grid [][]float64
	switch v := sl.(type) {
	case [][][]int16:
		if len(v) > 0 {
			grid = convertGrid(v[0], func(x int16) float64 { return float64(x) })
		}
	case [][][]int32:
		if len(v) > 0 {
			grid = convertGrid(v[0], func(x int32) float64 { return float64(x) })
		}
	case [][][]float32:
		if len(v) > 0 {
			grid = convertGrid(v[0], func(x float32) float64 { return float64(x) })
		}
	case [][][]float64:
		if len(v) > 0 {
			grid = v[0]
		}
	default:
		return nil, fmt.Errorf("unsupported storage type %T", sl)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty timestep slice, want %dx%d", rows, cols)
	}
	if len(grid) != rows || len(grid[0]) != cols {
		return nil, fmt.Errorf("grid is %dx%d, want %dx%d", len(grid), len(grid[0]), rows, cols)
	}
	return grid, nil
}

func convertGrid[T int16 | int32 | float32](in [][]T, f func(T) float64) [][]float64 {
	out := make([][]float64, len(in))
	for i, row := range in {
		out[i] = make([]float64, len(row))
		for j, x := range row {
			out[i][j] = f(x)
		}
	}
	return out
}

func axisValues(nc api.Group, names ...string) ([]float64, error) {
	for _, n := range names {
		vg, err := nc.GetVarGetter(n)
		if err != nil {
			continue
		}
		return valuesAsFloat64(vg)
	}
	return nil, fmt.Errorf("no %s axis", strings.Join(names, "/"))
}

func valuesAsFloat64(vg api.VarGetter) ([]float64, error) {
	vals, err := vg.Values()
	if err != nil {
		return nil, err
	}
	switch v := vals.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported axis type %T", vals)
	}
}

func attrFloat(am api.AttributeMap, key string) (float64, bool) {
	if am == nil {
		return 0, false
	}
	v, has := am.Get(key)
	if !has {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case []float64:
		if len(x) > 0 {
			return x[0], true
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int16:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	}
	return 0, false
}
