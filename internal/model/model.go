package model

import "time"

// ErrorKind classifies why a resolution could not complete.
type ErrorKind string

const (
	ErrInvalidURL                ErrorKind = "invalid_url"
	ErrDNSFailure                ErrorKind = "dns_failure"
	ErrTLSFailure                ErrorKind = "tls_failure"
	ErrConnectionRefused         ErrorKind = "connection_refused"
	ErrTimeout                   ErrorKind = "timeout"
	ErrTransportOther            ErrorKind = "transport_other"
	ErrRedirectLoopOrTooManyHops ErrorKind = "redirect_loop_or_too_many_hops"
	ErrOverallTimeout            ErrorKind = "overall_timeout"
	ErrRedirectLoop              ErrorKind = "redirect_loop"
)

// TransportError is returned by a transport when no response was received.
type TransportError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *TransportError) Unwrap() error { return e.Err }

// RedirectHop is one redirect step: the 3xx status and its resolved Location.
type RedirectHop struct {
	Status int    `json:"status"`
	URL    string `json:"url"`
}

// Finding is an informational note about a hop. It never changes the outcome.
type Finding struct {
	Type     string `json:"type"`
	AtHop    int    `json:"at_hop"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// CheckResult is the final output for a single input URL.
type CheckResult struct {
	SourceURL     string
	TargetURL     string
	InitialStatus int
	FinalStatus   *int
	Hops          []RedirectHop
	IsSafe        bool
	Error         *ErrorKind
	ErrorMessage  string
	Findings      []Finding
	StartedAt     time.Time
	DurationMs    int64
}

// Failed reports whether the resolution ended with an error.
func (r CheckResult) Failed() bool { return r.Error != nil }

// ErrorString returns the error kind or an empty string.
func (r CheckResult) ErrorString() string {
	if r.Error == nil {
		return ""
	}
	return string(*r.Error)
}

// LastStatus is the status used for the safety decision: the final status,
// or the initial one when the chain never resolved.
func (r CheckResult) LastStatus() int {
	if r.FinalStatus != nil {
		return *r.FinalStatus
	}
	return r.InitialStatus
}

// IsSafeStatus reports whether status is in [200, 400).
func IsSafeStatus(status int) bool {
	return status >= 200 && status < 400
}
