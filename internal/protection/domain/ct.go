package protection

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Current transformer defaults per IEC 61869 conventions.
const (
	DefaultCTPrimaryRatingA   = 200.0
	DefaultCTSecondaryRatingA = 5.0
	DefaultCTBurdenVA         = 15.0
	DefaultCTAccuracyClass    = "5P20"

	fallbackCompositeErrorPct   = 5.0
	fallbackAccuracyLimitFactor = 20.0
)

// CurrentTransformerConfig describes a CT at configuration time. Zero values
// fall back to the package defaults.
type CurrentTransformerConfig struct {
	Name             string
	PrimaryRatingA   float64
	SecondaryRatingA float64
	BurdenVA         float64
	// AccuracyClass is an IEC protection class string, "<error%>P<ALF>".
	AccuracyClass string
}

// CurrentTransformer scales primary fault current to relay-side secondary
// current and diagnoses accuracy-limit violations. Immutable after
// construction and safe for concurrent use.
type CurrentTransformer struct {
	name             string
	primaryRating    float64
	secondaryRating  float64
	burdenVA         float64
	ratio            float64
	accuracyClass    string
	compositeError   float64
	accuracyLimit    float64 // ALF, a multiple of rated secondary current
	configDiagnostic *Diagnostic
}

// NewCurrentTransformer constructs a CT. A malformed accuracy class string is
// not fatal: the documented default coefficients apply and a diagnostic is
// recorded, retrievable via ConfigDiagnostics.
func NewCurrentTransformer(cfg CurrentTransformerConfig) (*CurrentTransformer, error) {
	if cfg.Name == "" {
		return nil, errors.New("ct: empty name")
	}
	if cfg.PrimaryRatingA == 0 {
		cfg.PrimaryRatingA = DefaultCTPrimaryRatingA
	}
	if cfg.SecondaryRatingA == 0 {
		cfg.SecondaryRatingA = DefaultCTSecondaryRatingA
	}
	if cfg.BurdenVA == 0 {
		cfg.BurdenVA = DefaultCTBurdenVA
	}
	if cfg.AccuracyClass == "" {
		cfg.AccuracyClass = DefaultCTAccuracyClass
	}
	if cfg.PrimaryRatingA <= 0 || cfg.SecondaryRatingA <= 0 {
		return nil, errors.New("ct: ratings must be positive")
	}

	ct := &CurrentTransformer{
		name:            cfg.Name,
		primaryRating:   cfg.PrimaryRatingA,
		secondaryRating: cfg.SecondaryRatingA,
		burdenVA:        cfg.BurdenVA,
		ratio:           cfg.PrimaryRatingA / cfg.SecondaryRatingA,
		accuracyClass:   cfg.AccuracyClass,
	}

	errorPct, alf, ok := parseAccuracyClass(cfg.AccuracyClass)
	if !ok {
		errorPct = fallbackCompositeErrorPct
		alf = fallbackAccuracyLimitFactor
		ct.configDiagnostic = &Diagnostic{
			Code:    DiagnosticCTClassFallback,
			Device:  cfg.Name,
			Message: fmt.Sprintf("could not parse accuracy class %q, using %.0fP%.0f", cfg.AccuracyClass, fallbackCompositeErrorPct, fallbackAccuracyLimitFactor),
		}
	}
	ct.compositeError = errorPct
	ct.accuracyLimit = alf
	return ct, nil
}

// parseAccuracyClass splits "<error%>P<ALF>" strings such as "5P20".
func parseAccuracyClass(class string) (errorPct, alf float64, ok bool) {
	parts := strings.SplitN(strings.ToUpper(class), "P", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	errorPct, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	alf, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || alf <= 0 {
		return 0, 0, false
	}
	return errorPct, alf, true
}

// SecondaryCurrent converts a primary current to the secondary side. The
// returned value is the unclamped linear transformation; when it exceeds the
// accuracy limit a saturation diagnostic accompanies it.
func (ct *CurrentTransformer) SecondaryCurrent(primaryA float64) (float64, *Diagnostic) {
	secondary := primaryA / ct.ratio
	limit := ct.AccuracyLimitA()
	if secondary > limit {
		return secondary, &Diagnostic{
			Code:    DiagnosticCTSaturation,
			Device:  ct.name,
			Message: fmt.Sprintf("secondary current %.2fA exceeds accuracy limit %.2fA, CT may saturate", secondary, limit),
		}
	}
	return secondary, nil
}

// PrimaryCurrent converts a secondary current back to the primary side. It is
// the exact inverse of SecondaryCurrent.
func (ct *CurrentTransformer) PrimaryCurrent(secondaryA float64) float64 {
	return secondaryA * ct.ratio
}

// AccuracyLimitA returns the secondary current bound of the accuracy class.
func (ct *CurrentTransformer) AccuracyLimitA() float64 {
	return ct.secondaryRating * ct.accuracyLimit
}

// ConfigDiagnostics returns non-fatal findings recorded at construction.
func (ct *CurrentTransformer) ConfigDiagnostics() []Diagnostic {
	if ct.configDiagnostic == nil {
		return nil
	}
	return []Diagnostic{*ct.configDiagnostic}
}

// Name returns the CT identifier.
func (ct *CurrentTransformer) Name() string { return ct.name }

// Ratio returns primary rating over secondary rating.
func (ct *CurrentTransformer) Ratio() float64 { return ct.ratio }

// Describe returns a one-line summary for fleet listings.
func (ct *CurrentTransformer) Describe() string {
	return fmt.Sprintf("CT(name=%s, ratio=%g/%g, class=%s)", ct.name, ct.primaryRating, ct.secondaryRating, ct.accuracyClass)
}
