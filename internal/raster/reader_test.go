package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridAt(t *testing.T) {
	grid, err := gridAt([][][]int16{{{1, 2}, {3, 4}}}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, grid)

	grid, err = gridAt([][][]float64{{{1.5, 2.5}}}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1.5, 2.5}}, grid)
}

func TestGridAt_ShapeMismatch(t *testing.T) {
	_, err := gridAt([][][]float32{{{1, 2}, {3, 4}}}, 3, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid is 2x2, want 3x2")
}

func TestGridAt_EmptyTimestep(t *testing.T) {
	// Malformed files can yield a timestep with no data at all; that must
	// come back as an error, not a panic.
	for name, sl := range map[string]any{
		"no timesteps": [][][]float64{},
		"no rows":      [][][]float64{{}},
		"int16 empty":  [][][]int16{},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := gridAt(sl, 2, 2)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "empty timestep")
		})
	}
}

func TestGridAt_UnsupportedType(t *testing.T) {
	_, err := gridAt([][][]string{{{"x"}}}, 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage type")
}
