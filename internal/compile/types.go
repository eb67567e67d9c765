package compile

import (
	"encoding/json"
	"fmt"
)

// Options are the compiler switches sent with every request
type Options struct {
	WrapWithDefaults bool `json:"wrapWithDefaults"`
	SkipZk           bool `json:"skipZk"`
}

// Request is the body of POST /compile
type Request struct {
	Code    string  `json:"code"`
	Options Options `json:"options"`
}

// NewRequest builds the request used by the playground: the source is wrapped with the
// default pragma when needed and zero-knowledge key generation is skipped.
func NewRequest(code string) Request {
	return Request{
		Code: code,
		Options: Options{
			WrapWithDefaults: true,
			SkipZk:           true,
		},
	}
}

// Diagnostic is a single compiler message.
// Line and Column are 1-indexed, 0 means the compiler did not report one.
type Diagnostic struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// UnmarshalJSON accepts both the structured form and a bare string message
func (d *Diagnostic) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = Diagnostic{Message: s}
		return nil
	}

	type plain Diagnostic
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("decode diagnostic: %w", err)
	}
	if p.Line < 0 {
		p.Line = 0
	}
	if p.Column < 0 {
		p.Column = 0
	}
	*d = Diagnostic(p)
	return nil
}

// Outcome is the terminal result of one compile attempt.
//
// It is one of [Success], [Failure] or [TransportError].
type Outcome interface {
	outcome()
}

// Success is returned when the compiler accepted the program
type Success struct {
	Warnings []Diagnostic
	// Compile time reported by the service, 0 when absent
	ExecutionTimeMs float64
}

// Failure is returned when the compiler rejected the program
type Failure struct {
	Errors []Diagnostic
	// Free text fallbacks used when no structured errors were reported
	Message string
	Error   string
}

// TransportError is a failure outside of the compiler's own reporting:
// network errors, non 2xx responses and malformed bodies.
type TransportError struct {
	Message string
	// HTTP status of a non 2xx response, 0 for network level failures
	StatusCode int
}

func (Success) outcome()        {}
func (Failure) outcome()        {}
func (TransportError) outcome() {}

// response is the wire form of a 2xx compile response
type response struct {
	Success       bool         `json:"success"`
	Warnings      []Diagnostic `json:"warnings"`
	ExecutionTime float64      `json:"executionTime"`
	Errors        []Diagnostic `json:"errors"`
	Message       string       `json:"message"`
	Error         string       `json:"error"`
}

func (r response) outcome() Outcome {
	if r.Success {
		return Success{
			Warnings:        r.Warnings,
			ExecutionTimeMs: r.ExecutionTime,
		}
	}
	return Failure{
		Errors:  r.Errors,
		Message: r.Message,
		Error:   r.Error,
	}
}
