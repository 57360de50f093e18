package protection

import "iter"

// TCCPoint is one sample of a time-current characteristic sweep.
type TCCPoint struct {
	CurrentA float64
	Decision TripDecision
}

// TCCSeries returns a lazy, restartable sequence of (point, error) pairs over
// the supplied currents, in input order. No state is retained between
// iterations; ranging twice re-evaluates from the start. Iteration stops
// after the first evaluation error.
func (r *Relay) TCCSeries(currents []float64, faultType FaultType) iter.Seq2[TCCPoint, error] {
	return func(yield func(TCCPoint, error) bool) {
		for _, current := range currents {
			decision, err := r.CalculateTripTime(current, faultType)
			if err != nil {
				yield(TCCPoint{CurrentA: current}, err)
				return
			}
			if !yield(TCCPoint{CurrentA: current, Decision: decision}, nil) {
				return
			}
		}
	}
}
