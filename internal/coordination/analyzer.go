// Package coordination builds trip-time tables and checks time-margin
// selectivity across a set of protection relays.
package coordination

import (
	"errors"
	"sort"

	protection "github.com/studikumbang/relay-coordination/internal/protection/domain"
)

// DefaultMinMargin is the minimum coordination margin between successive
// relays, in seconds.
const DefaultMinMargin = 0.3

// ErrNoRelays indicates an analysis was requested over an empty relay set.
var ErrNoRelays = errors.New("coordination: no relays supplied")

// TableEntry holds one relay's outcome at one fault current. Total is nil
// when the relay has no associated breaker, otherwise it carries the trip
// decision with the breaker operating time added.
type TableEntry struct {
	Relay string
	Trip  protection.TripDecision
	Total *protection.TripDecision
}

// Columns reports how many table columns the entry occupies (1 without a
// breaker, 2 with one).
func (e TableEntry) Columns() int {
	if e.Total == nil {
		return 1
	}
	return 2
}

// TableRow holds all relay outcomes at one fault current.
type TableRow struct {
	FaultCurrentA float64
	Entries       []TableEntry
}

// Table is a coordination table: one row per supplied fault current, in
// input order.
type Table struct {
	FaultType protection.FaultType
	Rows      []TableRow
}

// SelectivityResult describes one relay's position in a selectivity check.
// Margin is nil for the primary (fastest) relay.
type SelectivityResult struct {
	Relay       string
	TripTime    float64
	Margin      *float64
	Primary     bool
	Selective   bool
	Diagnostics []protection.Diagnostic
}

// Analyzer runs coordination studies over an explicit relay set. It holds no
// mutable state and is safe for concurrent use.
type Analyzer struct {
	minMargin float64
}

// Option configures the analyzer.
type Option func(*Analyzer)

// WithMinMargin overrides the default selectivity margin.
func WithMinMargin(margin float64) Option {
	return func(a *Analyzer) {
		if margin > 0 {
			a.minMargin = margin
		}
	}
}

// NewAnalyzer constructs an analyzer.
func NewAnalyzer(opts ...Option) *Analyzer {
	analyzer := &Analyzer{minMargin: DefaultMinMargin}
	for _, opt := range opts {
		opt(analyzer)
	}
	return analyzer
}

// BuildTable evaluates every relay at every supplied fault current. Output
// row order follows the input current order; entry order follows the input
// relay order. Relays with a breaker contribute a total clearing time column
// in addition to the relay trip time.
func (a *Analyzer) BuildTable(relays []*protection.Relay, faultCurrents []float64, faultType protection.FaultType) (Table, error) {
	if len(relays) == 0 {
		return Table{}, ErrNoRelays
	}

	table := Table{FaultType: faultType, Rows: make([]TableRow, 0, len(faultCurrents))}
	for _, current := range faultCurrents {
		row := TableRow{FaultCurrentA: current, Entries: make([]TableEntry, 0, len(relays))}
		for _, relay := range relays {
			trip, err := relay.CalculateTripTime(current, faultType)
			if err != nil {
				return Table{}, err
			}
			entry := TableEntry{Relay: relay.Name(), Trip: trip}
			if breaker := relay.Breaker(); breaker != nil {
				total := breaker.AddOperatingTime(trip)
				entry.Total = &total
			}
			row.Entries = append(row.Entries, entry)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// CheckSelectivity evaluates every relay at the given fault current, orders
// the tripping relays by ascending trip time (ties keep input order) and
// computes the margin of each relay against its predecessor. The fastest
// relay is the primary and has no margin; every other relay is selective iff
// its margin meets minMargin. A non-positive minMargin selects the default.
func (a *Analyzer) CheckSelectivity(relays []*protection.Relay, faultCurrentA float64, faultType protection.FaultType, minMargin float64) ([]SelectivityResult, error) {
	if len(relays) == 0 {
		return nil, ErrNoRelays
	}
	if minMargin <= 0 {
		minMargin = a.minMargin
	}

	tripping := make([]SelectivityResult, 0, len(relays))
	for _, relay := range relays {
		decision, err := relay.CalculateTripTime(faultCurrentA, faultType)
		if err != nil {
			return nil, err
		}
		if !decision.Operates {
			continue
		}
		tripping = append(tripping, SelectivityResult{
			Relay:       relay.Name(),
			TripTime:    decision.TimeSeconds,
			Diagnostics: decision.Diagnostics,
		})
	}

	sort.SliceStable(tripping, func(i, j int) bool {
		return tripping[i].TripTime < tripping[j].TripTime
	})

	for i := range tripping {
		if i == 0 {
			tripping[i].Primary = true
			tripping[i].Selective = true
			continue
		}
		margin := tripping[i].TripTime - tripping[i-1].TripTime
		tripping[i].Margin = &margin
		tripping[i].Selective = margin >= minMargin
	}
	return tripping, nil
}
