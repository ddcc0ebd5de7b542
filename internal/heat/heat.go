// Package heat derives composite heat-stress metrics from temperature and
// dew point. Both metrics are pure functions of their inputs, so identical
// hourly rasters always produce bit-identical derived rasters.
package heat

import (
	"math"

	"bitbucket.org/ctessum/sparse"

	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/domain"
	"github.com/Climate-CAFE/era5-daily-heat-aggregation/internal/raster"
)

// Magnus saturation vapour pressure coefficients (Alduchov-Eskridge).
const (
	magnusA = 17.625
	magnusB = 243.04 // °C
)

// RelativeHumidity computes relative humidity in percent from air
// temperature and dew point, both in Celsius.
func RelativeHumidity(t, td float64) float64 {
	return 100 * math.Exp(magnusA*td/(magnusB+td)) / math.Exp(magnusA*t/(magnusB+t))
}

// HeatIndex computes the NWS heat index from temperature and dew point in
// Celsius, returning Celsius. The Rothfusz regression is only physically
// meaningful above 80 °F; below that bound the published formulations report
// the ambient temperature, and that policy is preserved here.
func HeatIndex(t, td float64) float64 {
	if math.IsNaN(t) || math.IsNaN(td) {
		return math.NaN()
	}

	tF := t*9/5 + 32
	if tF < 80 {
		return t
	}
	rh := RelativeHumidity(t, td)

	// Rothfusz (1990) regression, Fahrenheit.
	hi := -42.379 +
		2.04901523*tF +
		10.14333127*rh -
		0.22475541*tF*rh -
		0.00683783*tF*tF -
		0.05481717*rh*rh +
		0.00122874*tF*tF*rh +
		0.00085282*tF*rh*rh -
		0.00000199*tF*tF*rh*rh

	// NWS adjustments at the dry and humid margins.
	if rh < 13 && tF >= 80 && tF <= 112 {
		hi -= (13 - rh) / 4 * math.Sqrt((17-math.Abs(tF-95))/17)
	} else if rh > 85 && tF >= 80 && tF <= 87 {
		hi += (rh - 85) / 10 * (87 - tF) / 5
	}

	return (hi - 32) * 5 / 9
}

// Humidex computes the humidex from temperature and dew point in Celsius.
// The formula is continuous and defined for all realistic inputs, so no
// boundary handling is needed.
func Humidex(t, td float64) float64 {
	e := 6.1094 * math.Exp(magnusA*td/(magnusB+td))
	return t + 5.0/9.0*(e-10)
}

// Derive computes heat-index and humidex stacks from co-registered
// temperature and dew-point stacks, inheriting their timestamps.
func Derive(temp, dew *raster.Stack) (heatIndex, humidex *raster.Stack) {
	heatIndex = &raster.Stack{Variable: domain.VarHeatIndex, Geometry: temp.Geometry}
	humidex = &raster.Stack{Variable: domain.VarHumidex, Geometry: temp.Geometry}

	for i, tl := range temp.Layers {
		dl := dew.Layers[i]
		hi := sparse.ZerosDense(tl.Data.Shape...)
		hx := sparse.ZerosDense(tl.Data.Shape...)
		for k, t := range tl.Data.Elements {
			td := dl.Data.Elements[k]
			hi.Elements[k] = HeatIndex(t, td)
			hx.Elements[k] = Humidex(t, td)
		}
		heatIndex.Layers = append(heatIndex.Layers, raster.Layer{Time: tl.Time, Data: hi})
		humidex.Layers = append(humidex.Layers, raster.Layer{Time: tl.Time, Data: hx})
	}
	return heatIndex, humidex
}
