// Package domain models the EPA "Annual AQI by County" dataset and turns it
// into the county-level inputs and reports of the clustering service.
//
// # Data Source
//
// Rows come from the EPA AirData annual summary files
// (annual_aqi_by_county_YYYY.csv), one row per county per year. Several years
// are usually loaded together and aggregated per county.
//
// # Column Conventions
//
// Header names are trimmed before use. Some yearly files spell the 90th
// percentile column differently ("90th percentile AQI", "90th Percentile_AQI",
// trailing spaces); [NormalizeHeader] maps all of them to
// "90th Percentile AQI".
//
// Numeric columns are day counts or AQI values:
//
//	""       → 0 (unmeasured)
//	"42"     → 42
//	"42.9"   → 42 (truncated toward zero)
//	"n/a"    → error naming the column
//
// # County Features
//
// Each county becomes one cluster entity keyed "State|County" with four
// features averaged over all loaded years:
//
//	median     Median AQI
//	p90        90th Percentile AQI
//	max        Max AQI
//	unhealthy  Unhealthy + Very Unhealthy + Hazardous days
//
// The risk score used to rank clusters is the plain sum of the four.
//
// # High-Risk Classification
//
// A single-year snapshot (the latest year present). Thresholds are taken at a
// quantile q of the sorted values with index int(q*(n-1)):
//
//	high risk  Max AQI ≥ max threshold OR unhealthy days ≥ unhealthy threshold
//
// # County Extremes
//
// Over all years, each county keeps its largest Max AQI and 90th percentile
// AQI. Thresholds interpolate linearly at q*(n-1) of the sorted county values:
//
//	tier  extreme (both) | high (one) | lower (neither)
//
// # DAQSI
//
// The daily air quality severity index weights each AQI day category by its
// rarity across the dataset, w = -ln(frequency), scaled so the rarest category
// weighs 1. A record's index is the weighted count of non-good days minus the
// weighted good days, divided by the record's total categorized days.
//
// Severity patterns pivot each county's DAQSI by year (missing years are 0),
// standardize every year column and cluster the trajectories with KMeans.
package domain
