// Package household joins individuals to the household they belong to.
// Joins never cross survey periods.
package household

import (
	"github.com/JoacoLucen/EPH-Insight-App/internal/indicators"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
)

type fullKey struct {
	codusu   string
	nroHogar string
	period   microdata.Period
}

type dwellingKey struct {
	codusu string
	period microdata.Period
}

// Index resolves an individual's household in O(1). It is built once per
// snapshot and is safe for concurrent reads.
type Index struct {
	byHousehold map[fullKey]*microdata.Household
	byDwelling  map[dwellingKey][]*microdata.Household
}

// NewIndex indexes households by (CODUSU, NRO_HOGAR, period) and groups them
// by dwelling, (CODUSU, period), in input order. A repeated full key keeps
// the first household.
func NewIndex(households []microdata.Household) *Index {
	idx := &Index{
		byHousehold: make(map[fullKey]*microdata.Household, len(households)),
		byDwelling:  make(map[dwellingKey][]*microdata.Household, len(households)),
	}
	for i := range households {
		h := &households[i]
		fk := fullKey{codusu: h.CODUSU, nroHogar: h.NroHogar, period: h.Period}
		if _, ok := idx.byHousehold[fk]; !ok {
			idx.byHousehold[fk] = h
		}
		dk := dwellingKey{codusu: h.CODUSU, period: h.Period}
		idx.byDwelling[dk] = append(idx.byDwelling[dk], h)
	}
	return idx
}

// Lookup returns the household sharing CODUSU, NRO_HOGAR and period.
func (x *Index) Lookup(ind microdata.Individual) (*microdata.Household, bool) {
	h, ok := x.byHousehold[fullKey{codusu: ind.CODUSU, nroHogar: ind.NroHogar, period: ind.Period}]
	return h, ok
}

// Dwelling returns every household sharing the individual's CODUSU and period.
func (x *Index) Dwelling(ind microdata.Individual) []*microdata.Household {
	return x.byDwelling[dwellingKey{codusu: ind.CODUSU, period: ind.Period}]
}

// InsufficientHousing reports whether the individual lives in an
// insufficient household. The owning household decides when NRO_HOGAR is
// known. Without it, any insufficient household of the dwelling counts.
// found is false when no household matches.
func (x *Index) InsufficientHousing(ind microdata.Individual) (insufficient, found bool) {
	if ind.NroHogar != "" {
		h, ok := x.Lookup(ind)
		if !ok {
			return false, false
		}
		return h.Habitability == indicators.HabitabilityInsufficient, true
	}

	dwelling := x.Dwelling(ind)
	for _, h := range dwelling {
		if h.Habitability == indicators.HabitabilityInsufficient {
			return true, true
		}
	}
	return false, len(dwelling) > 0
}

// Len returns the number of indexed households.
func (x *Index) Len() int {
	return len(x.byHousehold)
}
