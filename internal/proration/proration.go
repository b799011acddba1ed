// Package proration splits a shared cost (utilities, community fees) between
// the rooms of a unit.
package proration

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Method selects how room weights are derived.
type Method string

const (
	Equal       Method = "equal"
	ByOccupants Method = "by_occupants"
	BySurface   Method = "by_surface"
	Mixed       Method = "mixed"
)

// MaxTotal is the largest amount Split accepts. Larger totals do not fit in
// int64 cents.
const MaxTotal = 1e12

var (
	ErrNoRooms       = errors.New("at least one room is required")
	ErrInvalidTotal  = errors.New("total must be a finite amount between 0 and 1e12")
	ErrInvalidRoom   = errors.New("room occupants and area must be non-negative")
	ErrUnknownMethod = errors.New("unknown proration method")
)

// RoomInput is the per-room data the split needs.
type RoomInput struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	Occupants int     `json:"occupants"`
	AreaM2    float64 `json:"area_m2"`
}

// Share is one room's part of the total.
type Share struct {
	RoomID     string  `json:"room_id"`
	Name       string  `json:"name,omitempty"`
	Weight     float64 `json:"weight"`
	Percentage float64 `json:"percentage"`
	Amount     float64 `json:"amount"`
}

// Result is the full split together with the method actually applied, which
// differs from the requested one when a weighting dimension sums to zero.
type Result struct {
	Total           float64 `json:"total"`
	RequestedMethod Method  `json:"requested_method"`
	AppliedMethod   Method  `json:"applied_method"`
	Shares          []Share `json:"shares"`
}

// ParseMethod validates a method name. An empty name means Equal.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case "":
		return Equal, nil
	case Equal, ByOccupants, BySurface, Mixed:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Split divides total between rooms. Amounts are rounded to cents with the
// largest-remainder method, so they always add up to the total rounded to
// cents and each amount is within one cent of its exact share.
func Split(total float64, rooms []RoomInput, method Method) (*Result, error) {
	if len(rooms) == 0 {
		return nil, ErrNoRooms
	}
	if math.IsNaN(total) || total < 0 || total > MaxTotal {
		return nil, ErrInvalidTotal
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	for _, r := range rooms {
		if r.Occupants < 0 || r.AreaM2 < 0 || math.IsNaN(r.AreaM2) || math.IsInf(r.AreaM2, 0) {
			return nil, fmt.Errorf("%w: room %q", ErrInvalidRoom, r.ID)
		}
	}

	applied, weights := weigh(rooms, method)

	var sum float64
	for _, w := range weights {
		sum += w
	}

	cents := allocateCents(int64(math.Round(total*100)), weights, sum)

	shares := make([]Share, len(rooms))
	for i, r := range rooms {
		shares[i] = Share{
			RoomID:     r.ID,
			Name:       r.Name,
			Weight:     weights[i],
			Percentage: round2(weights[i] / sum * 100),
			Amount:     float64(cents[i]) / 100,
		}
	}

	if method == "" {
		method = Equal
	}
	return &Result{
		Total:           float64(sumCents(cents)) / 100,
		RequestedMethod: method,
		AppliedMethod:   applied,
		Shares:          shares,
	}, nil
}

// weigh returns the method that ends up being applied and one weight per room.
// The weights of the applied method always sum to a positive number.
func weigh(rooms []RoomInput, method Method) (Method, []float64) {
	occ := make([]float64, len(rooms))
	area := make([]float64, len(rooms))
	var occSum, areaSum float64
	for i, r := range rooms {
		occ[i] = float64(r.Occupants)
		area[i] = r.AreaM2
		occSum += occ[i]
		areaSum += area[i]
	}

	switch method {
	case ByOccupants:
		if occSum > 0 {
			return ByOccupants, occ
		}
		if areaSum > 0 {
			return BySurface, area
		}
	case BySurface:
		if areaSum > 0 {
			return BySurface, area
		}
		if occSum > 0 {
			return ByOccupants, occ
		}
	case Mixed:
		switch {
		case occSum > 0 && areaSum > 0:
			w := make([]float64, len(rooms))
			for i := range rooms {
				w[i] = 0.5*occ[i]/occSum + 0.5*area[i]/areaSum
			}
			return Mixed, w
		case occSum > 0:
			return ByOccupants, occ
		case areaSum > 0:
			return BySurface, area
		}
	}

	w := make([]float64, len(rooms))
	for i := range w {
		w[i] = 1
	}
	return Equal, w
}

// allocateCents distributes totalCents proportionally to weights. Each room
// first gets the floor of its exact share; the cents left over go to the
// rooms with the largest fractional remainders, ties broken by input order.
func allocateCents(totalCents int64, weights []float64, sum float64) []int64 {
	type remainder struct {
		idx  int
		frac float64
	}

	out := make([]int64, len(weights))
	rems := make([]remainder, 0, len(weights))
	var assigned int64
	for i, w := range weights {
		exact := float64(totalCents) * w / sum
		floor := math.Floor(exact + 1e-9)
		out[i] = int64(floor)
		assigned += out[i]
		if w > 0 {
			rems = append(rems, remainder{idx: i, frac: exact - floor})
		}
	}

	sort.SliceStable(rems, func(i, j int) bool {
		return rems[i].frac > rems[j].frac
	})

	left := totalCents - assigned
	for i := 0; left > 0 && len(rems) > 0; i++ {
		out[rems[i%len(rems)].idx]++
		left--
	}
	return out
}

func sumCents(c []int64) int64 {
	var s int64
	for _, v := range c {
		s += v
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
