// Package domain models the vocabulary of the ERA5 daily heat aggregation
// pipeline: variables, statistics, output records, and the error taxonomy.
//
// # Data Source
//
// Hourly rasters come from the ECMWF ERA5 reanalysis (single-levels archive),
// already retrieved to disk as NetCDF by an external client. Each file carries
// one or more of the variables of interest:
//
//	t2m  2-meter air temperature        (Kelvin)
//	d2m  2-meter dew-point temperature  (Kelvin)
//	skt  skin temperature               (Kelvin)
//
// Values are packed as int16 with scale_factor/add_offset attributes and a
// _FillValue sentinel over ocean-masked cells. Timestamps are UTC, either a
// "valid_time" axis in epoch seconds or a legacy "time" axis in hours since
// 1900-01-01. Temperatures are converted to Celsius on ingest; everything
// downstream works in Celsius.
//
// # Derived Metrics
//
// Two composite heat-stress metrics are computed per cell per hour from t2m
// and d2m: the NWS heat index (Rothfusz regression, reported as the ambient
// temperature below its 80 °F applicability bound) and the humidex. Both are
// pure functions of temperature and dew point and are reproducible bit for bit.
//
// # Administrative Boundaries
//
// Administrative units are polygons from a vector dataset (one geometry per
// unit, GADM/geoBoundaries style) with a unique-ID attribute and optional
// higher-level parent IDs passed through to the output unchanged. Overlay
// weights attribute each unit's daily statistic to the raster cells it
// overlaps, in proportion to overlap area.
//
// # Output
//
// One DailyRecord per (administrative unit, local calendar day), with daily
// mean/min/max columns for each of the five variables, partitioned one file
// per processing year. Missing results are absent values, never zero, so that
// downstream consumers can distinguish "no coverage" from "0 °C".
package domain
