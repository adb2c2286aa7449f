package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding attaches coordinates to a county summary. If geocoder
// is nil the summary is returned unchanged; lookup failures set GeoSource to
// "failed" and leave the coordinates empty.
func EnrichWithGeocoding(ctx context.Context, s CountySummary, geocoder Geocoder, logger *slog.Logger) CountySummary {
	if geocoder == nil {
		return s
	}
	if s.County.County == "" || s.County.State == "" {
		s.GeoSource = "original"
		return s
	}

	result, err := geocoder.ForwardGeocode(ctx, s.County.County, s.County.State)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"county", s.County.County,
			"state", s.County.State,
			"error", err,
		)
		s.GeoSource = "failed"
		return s
	}
	if result.Lat == 0 && result.Lon == 0 {
		s.GeoSource = "original"
		return s
	}

	s.Lat = result.Lat
	s.Lon = result.Lon
	s.PlaceName = result.PlaceName
	s.FormattedAddress = result.FormattedAddress
	s.GeoConfidence = result.Confidence
	s.GeoSource = "forward"
	return s
}
