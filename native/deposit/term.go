package deposit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTerm is returned when a term has no cycle/month mapping.
	ErrInvalidTerm = errors.New("deposit: invalid term")
	// ErrInvalidDate is returned when an initial date does not parse.
	ErrInvalidDate = errors.New("deposit: invalid date")
)

// DateLayout is the wire format for deposit dates.
const DateLayout = "2006-01-02"

// Term is a fixed deposit duration bucket. Each term maps to a compounding
// cycle count (one cycle per six months) and a calendar month count.
type Term string

const (
	TermSixMonths  Term = "sixMonths"
	TermOneYear    Term = "oneYear"
	TermTwoYears   Term = "twoYears"
	TermThreeYears Term = "threeYears"
)

type termProfile struct {
	cycles int
	months int
}

var termProfiles = map[Term]termProfile{
	TermSixMonths:  {cycles: 1, months: 6},
	TermOneYear:    {cycles: 2, months: 12},
	TermTwoYears:   {cycles: 4, months: 24},
	TermThreeYears: {cycles: 6, months: 36},
}

// Known reports whether the term has a cycle/month mapping.
func (t Term) Known() bool {
	_, ok := termProfiles[t]
	return ok
}

// Cycles returns the number of compounding cycles for the term; unknown terms
// map to zero cycles.
func (t Term) Cycles() int {
	return termProfiles[t].cycles
}

// Months returns the calendar length of the term; unknown terms map to zero.
func (t Term) Months() int {
	return termProfiles[t].months
}

// ParseInitialDate parses a deposit start date from its wire form.
func ParseInitialDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return parsed, nil
}

// CompletionDate derives the maturity date by adding the term's months using
// calendar arithmetic, so month-end overflow follows standard calendar rules
// rather than fixed 30-day periods.
func CompletionDate(initial time.Time, term Term) (time.Time, error) {
	profile, ok := termProfiles[term]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTerm, term)
	}
	return initial.AddDate(0, profile.months, 0), nil
}
