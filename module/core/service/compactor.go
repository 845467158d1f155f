package service

import (
	"time"

	"github.com/JunjieYe1/cars-info/module/core/domain"
)

// CompactTrack decimates an ordered point sequence so that no two kept
// points are closer than minSpacing: the first point is always kept,
// and each later point only when it is at least minSpacing after the
// last kept one. Vendors report at sub-second to few-second cadence;
// storing every fix would grow the track table without adding
// positional fidelity.
func CompactTrack(points []domain.TrackPoint, minSpacing time.Duration) []domain.TrackPoint {
	if len(points) == 0 {
		return nil
	}

	kept := make([]domain.TrackPoint, 0, len(points))
	kept = append(kept, points[0])
	lastKept := points[0].Time
	for _, p := range points[1:] {
		if p.Time.Sub(lastKept) >= minSpacing {
			kept = append(kept, p)
			lastKept = p.Time
		}
	}
	return kept
}
