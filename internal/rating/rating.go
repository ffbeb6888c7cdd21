// Package rating implements the premium calculator and guest-range
// classifier. All functions are pure lookups against the embedded tables;
// unknown or absent inputs rate as zero.
package rating

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

type rateTables struct {
	BaseRates      map[int]int64    `yaml:"baseRates"`
	LiabilityRates map[string]int64 `yaml:"liabilityRates"`
	NewTierOptions []string         `yaml:"newTierOptions"`
	GuestBands     []int            `yaml:"guestBands"`
	LiquorRates    struct {
		Standard map[int]int64 `yaml:"standard"`
		NewTier  map[int]int64 `yaml:"newTier"`
	} `yaml:"liquorRates"`
}

var tables rateTables

func init() {
	if err := yaml.Unmarshal(tablesYAML, &tables); err != nil {
		panic("rating: invalid embedded tables: " + err.Error())
	}
}

// GuestBand is the upper bound of a discrete guest-count pricing band.
type GuestBand int

// ClassifyGuestRange maps a raw guest count to its pricing band. The second
// return value is false when the count falls above the top band (or is not a
// positive number), in which case no band applies.
func ClassifyGuestRange(maxGuests int) (GuestBand, bool) {
	if maxGuests < 1 {
		return 0, false
	}
	for _, upper := range tables.GuestBands {
		if maxGuests <= upper {
			return GuestBand(upper), true
		}
	}
	return 0, false
}

// BaseRate returns the base premium for a coverage level (1..10), in cents.
// Out-of-range levels rate as zero.
func BaseRate(level int) int64 {
	return tables.BaseRates[level]
}

// LiabilityRate returns the premium for a liability option code, in cents.
// Unknown or empty codes rate as zero.
func LiabilityRate(option string) int64 {
	return tables.LiabilityRates[option]
}

// isNewTier reports whether the liability option rates against the higher
// liquor table.
func isNewTier(option string) bool {
	for _, o := range tables.NewTierOptions {
		if o == option {
			return true
		}
	}
	return false
}

// LiquorRate returns the liquor-liability premium in cents. It is zero when
// liquor liability is not selected or when no guest band applies. The table
// used depends on whether the liability option belongs to the new tier.
func LiquorRate(hasLiquor bool, maxGuests int, liabilityOption string) int64 {
	if !hasLiquor {
		return 0
	}
	band, ok := ClassifyGuestRange(maxGuests)
	if !ok {
		return 0
	}
	if isNewTier(liabilityOption) {
		return tables.LiquorRates.NewTier[int(band)]
	}
	return tables.LiquorRates.Standard[int(band)]
}

// Premium is the computed premium breakdown for a set of coverage selections.
type Premium struct {
	BaseCents      int64
	LiabilityCents int64
	LiquorCents    int64
	TotalCents     int64
}

// Calculate computes the full premium breakdown from coverage selections.
// The total is always the sum of the three components.
func Calculate(coverageLevel int, liabilityOption string, hasLiquor bool, maxGuests int) Premium {
	p := Premium{
		BaseCents:      BaseRate(coverageLevel),
		LiabilityCents: LiabilityRate(liabilityOption),
		LiquorCents:    LiquorRate(hasLiquor, maxGuests, liabilityOption),
	}
	p.TotalCents = p.BaseCents + p.LiabilityCents + p.LiquorCents
	return p
}
