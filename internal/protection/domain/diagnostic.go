package protection

// DiagnosticCode classifies non-fatal findings raised during evaluation or
// configuration. Diagnostics never abort a calculation; the computed value is
// returned alongside them.
type DiagnosticCode string

const (
	// DiagnosticCTSaturation flags secondary current beyond the accuracy limit.
	DiagnosticCTSaturation DiagnosticCode = "ct_saturation"
	// DiagnosticCTClassFallback flags an unparseable accuracy class string.
	DiagnosticCTClassFallback DiagnosticCode = "ct_class_fallback"
	// DiagnosticBreakerCapability flags fault current beyond the interrupting rating.
	DiagnosticBreakerCapability DiagnosticCode = "breaker_capability"
)

// Diagnostic is a structured non-fatal warning attributed to a device.
type Diagnostic struct {
	Code    DiagnosticCode
	Device  string
	Message string
}
