// Package persona generates the synthetic identities substituted for real
// ones during pseudonymization. All randomness comes from crypto/rand:
// generated identities leave the system (they are shown to a third-party
// model), so they must not be predictable or replayable across sessions.
package persona

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"time"
)

// Gender selects the first-name pool.
type Gender int

const (
	Unknown Gender = iota
	Male
	Female
)

func (g Gender) String() string {
	switch g {
	case Male:
		return "male"
	case Female:
		return "female"
	default:
		return "unknown"
	}
}

// Persona is a complete synthetic identity. One is created per subject and
// one per contact entry, used for the duration of anonymization, then
// discarded.
type Persona struct {
	FirstName  string
	LastName   string
	Civility   string
	Street     string
	PostalCode string
	City       string
	ClientID   string
	AccessNote string
	BirthDate  time.Time
}

// Age distribution for synthetic birth dates: a discrete normal truncated to
// the plausible age range of the patient population.
const (
	ageMean  = 83.0
	ageSigma = 6.5
	ageMin   = 60
	ageMax   = 100
)

// ageCDF holds the cumulative distribution over the integer support,
// normalized to [0,1]. Computed once; sampling is a binary-search-free
// linear walk over 41 entries.
var ageCDF = buildAgeCDF()

func buildAgeCDF() []float64 {
	cdf := make([]float64, ageMax-ageMin+1)
	total := 0.0
	for age := ageMin; age <= ageMax; age++ {
		z := (float64(age) - ageMean) / ageSigma
		total += math.Exp(-0.5 * z * z)
		cdf[age-ageMin] = total
	}
	for i := range cdf {
		cdf[i] /= total
	}
	return cdf
}

// Generator produces Personas. It is stateless apart from the entropy it
// consumes and is safe for concurrent use.
type Generator struct {
	now func() time.Time
}

// NewGenerator returns a generator using the wall clock for age derivation.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// New returns a fully populated Persona. The first name is drawn from the
// pool matching gender; Unknown draws uniformly over both pools, with the
// civility title following whichever pool the draw landed in.
func (g *Generator) New(gender Gender) *Persona {
	var first, civility string
	switch gender {
	case Male:
		first = maleFirstNames[randIntn(len(maleFirstNames))]
		civility = "M."
	case Female:
		first = femaleFirstNames[randIntn(len(femaleFirstNames))]
		civility = "Mme"
	default:
		i := randIntn(len(maleFirstNames) + len(femaleFirstNames))
		if i < len(maleFirstNames) {
			first = maleFirstNames[i]
			civility = "M."
		} else {
			first = femaleFirstNames[i-len(maleFirstNames)]
			civility = "Mme"
		}
	}

	loc := localities[randIntn(len(localities))]

	return &Persona{
		FirstName:  first,
		LastName:   lastNames[randIntn(len(lastNames))],
		Civility:   civility,
		Street:     fmt.Sprintf("%d %s", 1+randIntn(98), streetNames[randIntn(len(streetNames))]),
		PostalCode: loc.postalCode,
		City:       loc.city,
		ClientID:   fmt.Sprintf("%08d", randIntn(100000000)),
		AccessNote: "Accès libre",
		BirthDate:  g.birthDate(),
	}
}

// birthDate samples an age from the truncated normal by inverse-CDF, derives
// the birth year from today, and picks month and day uniformly. Days are
// capped at 28 so every generated date is valid without per-month calendar
// logic.
func (g *Generator) birthDate() time.Time {
	u := randFloat()
	age := ageMax
	for i, c := range ageCDF {
		if u <= c {
			age = ageMin + i
			break
		}
	}

	year := g.now().Year() - age
	month := time.Month(1 + randIntn(12))
	day := 1 + randIntn(28)
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// randIntn returns a uniform int in [0,n) from crypto/rand.
func randIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// nothing sensible can continue.
		panic(fmt.Sprintf("persona: entropy source unavailable: %v", err))
	}
	return int(v.Int64())
}

// randFloat returns a uniform float64 in [0,1).
func randFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("persona: entropy source unavailable: %v", err))
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / float64(1<<53)
}
