// Package geo implements the nearest-branch suggestion used when assigning
// a request. It is advisory: a human assigner may override the suggestion
// with any partner/branch.
package geo

import (
	"math"
	"sort"

	"dispatch/internal/models"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// coordinates.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Match is a serviceable nearest-branch suggestion.
type Match struct {
	Branch     models.Branch `json:"branch"`
	DistanceKm float64       `json:"distance_km"`
}

// Nearest ranks the candidate branches by distance from the given point and
// returns the closest one, provided the point lies within that branch's own
// service radius. If the closest branch is out of range the result is nil:
// the match must be serviceable, not merely nearest, so a farther in-range
// branch is never substituted.
func Nearest(branches []models.Branch, lat, lng float64) *Match {
	if len(branches) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(branches))
	for _, b := range branches {
		matches = append(matches, Match{
			Branch:     b,
			DistanceKm: Haversine(lat, lng, b.Lat, b.Lng),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})

	closest := matches[0]
	if closest.DistanceKm > closest.Branch.ServiceRadiusKm {
		return nil
	}
	return &closest
}
