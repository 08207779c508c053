// Package offset decides which of the two observed Ramadan start groups a
// location belongs to, and applies the finer district-level minute
// corrections some national authorities publish.
package offset

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
)

// Offset is a day-level shift relative to the earliest observed start date.
type Offset int

// The two observed start groups.
const (
	GroupFeb18 Offset = 0
	GroupFeb19 Offset = -1
)

// Valid reports whether o is one of the observed groups.
func (o Offset) Valid() bool {
	return o == GroupFeb18 || o == GroupFeb19
}

// Days returns the number of days to add to the reference start date.
func (o Offset) Days() int {
	if o < 0 {
		return -int(o)
	}
	return int(o)
}

// Rule names which lookup stage produced a decision.
type Rule string

const (
	RuleCity      Rule = "city"
	RuleComposite Rule = "country (city)"
	RuleCountry   Rule = "country"
	RuleAlias     Rule = "alias"
	RuleDefault   Rule = "default"
)

// Match is a resolver decision together with the key that produced it.
type Match struct {
	Offset Offset `json:"offset"`
	Rule   Rule   `json:"rule"`
	Key    string `json:"key,omitempty"`
}

// ErrInvalidOffset is returned when an override table holds a value outside {0, -1}.
var ErrInvalidOffset = errors.New("offset must be 0 or -1")

// Resolver maps locations to offsets. The zero value resolves everything to GroupFeb18.
type Resolver struct {
	cities    map[string]Offset
	composite map[string]Offset
	countries map[string]Offset
	aliases   map[string]string
}

// Overrides is the on-disk shape of an operator supplied table. Entries are
// merged over the built-in tables.
type Overrides struct {
	Cities    map[string]Offset `yaml:"cities"`
	Composite map[string]Offset `yaml:"composite"`
	Countries map[string]Offset `yaml:"countries"`
	Aliases   map[string]string `yaml:"aliases"`
}

var defaultResolver = NewResolver(Overrides{})

// Default returns the resolver built from the built-in tables.
func Default() *Resolver { return defaultResolver }

// Resolve is Default().Resolve(loc).
func Resolve(loc geo.Location) Offset { return defaultResolver.Resolve(loc) }

// NewResolver builds a resolver from the built-in tables merged with ov.
// Invalid override values are ignored; use LoadFile for validation.
func NewResolver(ov Overrides) *Resolver {
	r := &Resolver{
		cities:    make(map[string]Offset),
		composite: make(map[string]Offset),
		countries: make(map[string]Offset),
		aliases:   make(map[string]string),
	}
	mergeOffsets(r.cities, defaultCities, ov.Cities)
	mergeOffsets(r.composite, defaultComposite, ov.Composite)
	mergeOffsets(r.countries, defaultCountries, ov.Countries)
	for _, src := range []map[string]string{defaultAliases, ov.Aliases} {
		for k, v := range src {
			r.aliases[normalize(k)] = strings.TrimSpace(v)
		}
	}
	return r
}

func mergeOffsets(dst map[string]Offset, srcs ...map[string]Offset) {
	for _, src := range srcs {
		for k, v := range src {
			if v.Valid() {
				dst[normalize(k)] = v
			}
		}
	}
}

// LoadFile reads a YAML override table and returns the merged resolver.
// An empty path returns the default resolver.
func LoadFile(path string) (*Resolver, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading offset table: %w", err)
	}

	var ov Overrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("parsing offset table %s: %w", path, err)
	}

	for name, table := range map[string]map[string]Offset{
		"cities":    ov.Cities,
		"composite": ov.Composite,
		"countries": ov.Countries,
	} {
		for k, v := range table {
			if !v.Valid() {
				return nil, fmt.Errorf("offset table %s[%q] = %d: %w", name, k, v, ErrInvalidOffset)
			}
		}
	}

	return NewResolver(ov), nil
}

// Resolve returns the day offset for loc. It never fails; unknown locations
// resolve to GroupFeb18.
func (r *Resolver) Resolve(loc geo.Location) Offset {
	return r.Lookup(loc).Offset
}

// Lookup walks city, "Country (City)", country, then the country alias, and
// reports the first match.
func (r *Resolver) Lookup(loc geo.Location) Match {
	if r == nil {
		return Match{Offset: GroupFeb18, Rule: RuleDefault}
	}

	city := strings.TrimSpace(loc.City)
	country := strings.TrimSpace(loc.Country)

	if city != "" {
		if o, ok := r.cities[normalize(city)]; ok {
			return Match{Offset: o, Rule: RuleCity, Key: city}
		}
	}

	if city != "" && country != "" {
		key := compositeKey(country, city)
		if o, ok := r.composite[normalize(key)]; ok {
			return Match{Offset: o, Rule: RuleComposite, Key: key}
		}
	}

	if country != "" {
		if o, ok := r.countries[normalize(country)]; ok {
			return Match{Offset: o, Rule: RuleCountry, Key: country}
		}
		if canonical, ok := r.aliases[normalize(country)]; ok {
			if city != "" {
				key := compositeKey(canonical, city)
				if o, ok := r.composite[normalize(key)]; ok {
					return Match{Offset: o, Rule: RuleAlias, Key: key}
				}
			}
			if o, ok := r.countries[normalize(canonical)]; ok {
				return Match{Offset: o, Rule: RuleAlias, Key: canonical}
			}
		}
	}

	return Match{Offset: GroupFeb18, Rule: RuleDefault}
}

// Country returns the canonical country name for loc, following aliases.
func (r *Resolver) Country(loc geo.Location) string {
	country := strings.TrimSpace(loc.Country)
	if r != nil {
		if canonical, ok := r.aliases[normalize(country)]; ok {
			return canonical
		}
	}
	return country
}

func compositeKey(country, city string) string {
	return fmt.Sprintf("%s (%s)", country, city)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
