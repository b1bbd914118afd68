package api

import (
	"fmt"
	"math"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/zkpresence/zkpresence/types"
)

// locationClusterRadius is the advertised radius, in meters, of each
// aggregated location bucket. Coordinates are quantized to three decimal
// places (roughly 100m) before bucketing, so individual submissions are
// never exposed at full precision.
const locationClusterRadius = 100.0

// demographics aggregates the accepted proofs of a group. Proofs are
// bucketed by age range and gender, members are counted once per identity
// commitment regardless of how many proofs they submitted, and locations
// are coarsened into fixed-radius clusters.
func (a *API) demographics(w http.ResponseWriter, r *http.Request) {
	anchor := chi.URLParam(r, AnchorURLParam)
	if anchor == "" {
		ErrMalformedAnchor.Write(w)
		return
	}
	exists, err := a.storage.Groups().Exists(anchor)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if !exists {
		ErrGroupNotFound.Withf("%s", anchor).Write(w)
		return
	}
	recs, err := a.storage.ProofsByAnchor(anchor, 0)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	summary := &DemographicsSummary{
		Anchor:      anchor,
		TotalProofs: len(recs),
		AgeRanges:   map[string]int{},
		Genders:     map[string]int{},
	}
	members := map[string]bool{}
	clusters := map[string]*LocationCluster{}
	for _, rec := range recs {
		if summary.LastProofAt == nil || rec.Timestamp.After(*summary.LastProofAt) {
			ts := rec.Timestamp
			summary.LastProofAt = &ts
		}
		members[rec.IdentityCommitment.String()] = true

		key := locationClusterKey(rec.Location)
		if cl, ok := clusters[key]; ok {
			cl.MemberCount++
		} else {
			clusters[key] = &LocationCluster{
				Center: ClusterCenter{
					Latitude:  rec.Location.Latitude,
					Longitude: rec.Location.Longitude,
				},
				Radius:      locationClusterRadius,
				MemberCount: 1,
			}
		}

		gender := ""
		if rec.Demographics != nil {
			gender = rec.Demographics.Gender
			if rec.Demographics.AgeRange != "" {
				summary.AgeRanges[rec.Demographics.AgeRange]++
			}
		}
		if gender == "" {
			gender = "prefer_not_to_say"
		}
		summary.Genders[gender]++
	}
	summary.TotalMembers = len(members)
	summary.Locations = make([]*LocationCluster, 0, len(clusters))
	for _, cl := range clusters {
		summary.Locations = append(summary.Locations, cl)
	}
	sort.Slice(summary.Locations, func(i, j int) bool {
		li, lj := summary.Locations[i], summary.Locations[j]
		if li.MemberCount != lj.MemberCount {
			return li.MemberCount > lj.MemberCount
		}
		if li.Center.Latitude != lj.Center.Latitude {
			return li.Center.Latitude < lj.Center.Latitude
		}
		return li.Center.Longitude < lj.Center.Longitude
	})
	httpWriteJSON(w, summary)
}

// locationClusterKey quantizes a location to three decimal places. Proofs
// landing on the same quantized coordinates share a cluster, whose center
// stays at the first proof's location.
func locationClusterKey(loc types.Location) string {
	return fmt.Sprintf("%d,%d",
		int64(math.Round(loc.Latitude*1000)),
		int64(math.Round(loc.Longitude*1000)))
}
