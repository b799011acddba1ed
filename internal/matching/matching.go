// Package matching scores coliving rooms against what a seeker is looking
// for. Scores are deterministic and bounded; missing inputs fall back to
// neutral defaults instead of failing.
package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/umahmood/haversine"
)

// Maximum points per component. They add up to MaxTotal.
const (
	MaxBudget        = 25.0
	MaxPreferences   = 30.0
	MaxLocation      = 20.0
	MaxAvailability  = 15.0
	MaxCompatibility = 10.0
	MaxTotal         = MaxBudget + MaxPreferences + MaxLocation + MaxAvailability + MaxCompatibility
)

const (
	defaultMaxDistanceKm = 10.0
	amenityBonus         = 2.0
	maxAmenityBonus      = 10.0
	rulePenalty          = 10.0
	preferenceBase       = 20.0
	overBudgetCutoff     = 0.20
)

// Seeker is the search side of a match.
type Seeker struct {
	BudgetMin        float64    `json:"budget_min"`
	BudgetMax        float64    `json:"budget_max"`
	MoveIn           *time.Time `json:"move_in,omitempty"`
	City             string     `json:"city"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	MaxDistanceKm    float64    `json:"max_distance_km"`
	DesiredAmenities []string   `json:"desired_amenities"`
	Smoker           bool       `json:"smoker"`
	HasPets          bool       `json:"has_pets"`
	IsCouple         bool       `json:"is_couple"`
	Age              *int       `json:"age,omitempty"`
	LifestyleTags    []string   `json:"lifestyle_tags"`
}

// Candidate is a room offered to the seeker.
type Candidate struct {
	RoomID         string     `json:"room_id"`
	Name           string     `json:"name,omitempty"`
	MonthlyPrice   float64    `json:"monthly_price"`
	Amenities      []string   `json:"amenities"`
	SmokingAllowed bool       `json:"smoking_allowed"`
	PetsAllowed    bool       `json:"pets_allowed"`
	CouplesAllowed bool       `json:"couples_allowed"`
	AvailableFrom  *time.Time `json:"available_from,omitempty"`
	City           string     `json:"city"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	HousemateAges  []int      `json:"housemate_ages"`
	HousemateTags  []string   `json:"housemate_tags"`
}

// Breakdown holds the points awarded by each component.
type Breakdown struct {
	Budget        float64 `json:"budget"`
	Preferences   float64 `json:"preferences"`
	Location      float64 `json:"location"`
	Availability  float64 `json:"availability"`
	Compatibility float64 `json:"compatibility"`
}

// Result is the score of one candidate.
type Result struct {
	RoomID     string    `json:"room_id"`
	Name       string    `json:"name,omitempty"`
	Total      float64   `json:"total"`
	Breakdown  Breakdown `json:"breakdown"`
	DistanceKm *float64  `json:"distance_km,omitempty"`
	Reasons    []string  `json:"reasons"`
}

// Score computes the composite score of room for seeker.
func Score(s Seeker, room Candidate) Result {
	res := Result{RoomID: room.RoomID, Name: room.Name, Reasons: []string{}}

	res.Breakdown.Budget = budgetScore(s, room, &res.Reasons)
	res.Breakdown.Preferences = preferenceScore(s, room, &res.Reasons)
	res.Breakdown.Location, res.DistanceKm = locationScore(s, room, &res.Reasons)
	res.Breakdown.Availability = availabilityScore(s, room, &res.Reasons)
	res.Breakdown.Compatibility = compatibilityScore(s, room, &res.Reasons)

	b := res.Breakdown
	res.Total = round1(b.Budget + b.Preferences + b.Location + b.Availability + b.Compatibility)
	return res
}

// Rank scores every room and orders them best first. Ties keep room ID order
// so repeated calls return the same ranking.
func Rank(s Seeker, rooms []Candidate) []Result {
	out := make([]Result, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, Score(s, r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].RoomID < out[j].RoomID
	})
	return out
}

func budgetScore(s Seeker, room Candidate, reasons *[]string) float64 {
	lo, hi := s.BudgetMin, s.BudgetMax
	if hi <= 0 && lo <= 0 {
		return 15
	}
	// A minimum alone is read as the price the seeker expects to pay.
	if hi <= 0 {
		hi = lo
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	price := room.MonthlyPrice

	switch {
	case price < lo:
		*reasons = append(*reasons, "below budget")
		return 20
	case price > hi:
		over := (price - hi) / hi
		if over >= overBudgetCutoff {
			*reasons = append(*reasons, "well over budget")
			return 0
		}
		*reasons = append(*reasons, "slightly over budget")
		return round1(clamp(15*(1-over/overBudgetCutoff), 0, MaxBudget))
	}

	half := (hi - lo) / 2
	if half == 0 {
		*reasons = append(*reasons, "matches budget")
		return MaxBudget
	}
	off := math.Abs(price-(lo+half)) / half
	*reasons = append(*reasons, "within budget")
	return round1(clamp(MaxBudget-10*off, 0, MaxBudget))
}

func preferenceScore(s Seeker, room Candidate, reasons *[]string) float64 {
	score := preferenceBase

	have := make(map[string]bool, len(room.Amenities))
	for _, a := range room.Amenities {
		have[normalize(a)] = true
	}
	var bonus float64
	var matched []string
	for _, want := range s.DesiredAmenities {
		if have[normalize(want)] {
			bonus += amenityBonus
			matched = append(matched, want)
		}
	}
	if len(matched) > 0 {
		*reasons = append(*reasons, "has "+strings.Join(matched, ", "))
	}
	score += math.Min(bonus, maxAmenityBonus)

	if s.Smoker && !room.SmokingAllowed {
		score -= rulePenalty
		*reasons = append(*reasons, "smoking not allowed")
	}
	if s.HasPets && !room.PetsAllowed {
		score -= rulePenalty
		*reasons = append(*reasons, "pets not allowed")
	}
	if s.IsCouple && !room.CouplesAllowed {
		score -= rulePenalty
		*reasons = append(*reasons, "couples not allowed")
	}
	return clamp(score, 0, MaxPreferences)
}

func locationScore(s Seeker, room Candidate, reasons *[]string) (float64, *float64) {
	if s.Latitude != nil && s.Longitude != nil && room.Latitude != nil && room.Longitude != nil {
		_, km := haversine.Distance(
			haversine.Coord{Lat: *s.Latitude, Lon: *s.Longitude},
			haversine.Coord{Lat: *room.Latitude, Lon: *room.Longitude},
		)
		dist := round1(km)

		limit := s.MaxDistanceKm
		if limit <= 0 {
			limit = defaultMaxDistanceKm
		}
		*reasons = append(*reasons, fmt.Sprintf("%.1f km away", dist))
		if km <= 1 {
			return MaxLocation, &dist
		}
		if limit <= 1 || km >= limit {
			return 0, &dist
		}
		return round1(clamp(MaxLocation*(limit-km)/(limit-1), 0, MaxLocation)), &dist
	}

	want, got := normalize(s.City), normalize(room.City)
	switch {
	case want == "" || got == "":
		return 10, nil
	case want == got:
		*reasons = append(*reasons, "in "+room.City)
		return 15, nil
	default:
		*reasons = append(*reasons, "different city")
		return 0, nil
	}
}

func availabilityScore(s Seeker, room Candidate, reasons *[]string) float64 {
	if s.MoveIn == nil || room.AvailableFrom == nil {
		return 8
	}
	days := int(math.Ceil(dateOnly(*room.AvailableFrom).Sub(dateOnly(*s.MoveIn)).Hours() / 24))
	switch {
	case days <= 0:
		*reasons = append(*reasons, "available on move-in date")
		return MaxAvailability
	case days <= 7:
		*reasons = append(*reasons, fmt.Sprintf("available %d days after move-in", days))
		return 12
	case days <= 30:
		*reasons = append(*reasons, fmt.Sprintf("available %d days after move-in", days))
		return 8
	case days <= 60:
		*reasons = append(*reasons, fmt.Sprintf("available %d days after move-in", days))
		return 4
	default:
		*reasons = append(*reasons, "not available in time")
		return 0
	}
}

func compatibilityScore(s Seeker, room Candidate, reasons *[]string) float64 {
	if len(room.HousemateAges) == 0 && len(room.HousemateTags) == 0 {
		return 7
	}

	var score float64
	if s.Age != nil && len(room.HousemateAges) > 0 {
		var total int
		for _, a := range room.HousemateAges {
			total += a
		}
		avg := float64(total) / float64(len(room.HousemateAges))
		switch gap := math.Abs(avg - float64(*s.Age)); {
		case gap <= 5:
			score += 5
			*reasons = append(*reasons, "similar age housemates")
		case gap <= 10:
			score += 3
		}
	}

	if j := jaccard(s.LifestyleTags, room.HousemateTags); j > 0 {
		score += 5 * j
		*reasons = append(*reasons, "shared lifestyle")
	}
	return round1(clamp(score, 0, MaxCompatibility))
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, v := range a {
		setA[normalize(v)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, v := range b {
		setB[normalize(v)] = true
	}
	var inter int
	for v := range setA {
		if setB[v] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
