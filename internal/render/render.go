// Package render turns compile outcomes into display payloads and escaped markup.
package render

import (
	"fmt"
	"strconv"

	"github.com/jwtly10/compactbook/internal/compile"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusLoading Status = "loading"
)

// Item is one line of the output region
type Item struct {
	// "Line 3" or "Line 3:5", empty when the diagnostic has no line
	LocationText string `json:"locationText,omitempty"`
	MessageText  string `json:"messageText"`
}

// Payload is everything needed to display one outcome.
//
// All text fields are plain, unescaped text. Use [Markup] to insert a payload into a page.
type Payload struct {
	Status      Status `json:"status"`
	Heading     string `json:"heading"`
	SummaryText string `json:"summaryText"`
	Items       []Item `json:"items"`
	// Warnings are success items, errors are failure items
	Warnings bool `json:"warnings,omitempty"`
}

const (
	headingSuccess   = "Compilation Successful"
	headingFailure   = "Compilation Failed"
	headingTransport = "Connection Error"

	summaryValid     = "Your code is valid!"
	summaryTransport = "Failed to connect to compilation server"

	// NothingToCompile is shown when a run is requested for an empty block
	NothingToCompile = "No code to compile"
)

// Render builds the payload for outcome. A nil outcome renders as a transport error.
func Render(outcome compile.Outcome) Payload {
	switch o := outcome.(type) {
	case compile.Success:
		summary := summaryValid
		if o.ExecutionTimeMs > 0 {
			summary = fmt.Sprintf("Compiled in %sms", strconv.FormatFloat(o.ExecutionTimeMs, 'f', -1, 64))
		}
		return Payload{
			Status:      StatusSuccess,
			Heading:     headingSuccess,
			SummaryText: summary,
			Items:       diagnosticItems(o.Warnings),
			Warnings:    len(o.Warnings) > 0,
		}
	case compile.Failure:
		items := diagnosticItems(o.Errors)
		if len(items) == 0 {
			switch {
			case o.Message != "":
				items = []Item{{MessageText: o.Message}}
			case o.Error != "":
				items = []Item{{MessageText: o.Error}}
			}
		}
		return Payload{
			Status:      StatusError,
			Heading:     headingFailure,
			SummaryText: errorCount(len(o.Errors)),
			Items:       items,
		}
	case compile.TransportError:
		return Payload{
			Status:      StatusError,
			Heading:     headingTransport,
			SummaryText: summaryTransport,
			Items:       []Item{{MessageText: o.Message}},
		}
	default:
		return Payload{
			Status:      StatusError,
			Heading:     headingTransport,
			SummaryText: summaryTransport,
			Items:       []Item{{MessageText: fmt.Sprintf("unexpected compile outcome %T", outcome)}},
		}
	}
}

// Empty is the payload of a run request on a block without code
func Empty() Payload {
	return Render(compile.Failure{Message: NothingToCompile})
}

// Compiling is the placeholder shown while a request is in flight
func Compiling() Payload {
	return Payload{
		Status:      StatusLoading,
		Heading:     "Compiling...",
		SummaryText: "Compiling...",
	}
}

// Location formats the location of d, or returns "" when it has no line
func Location(d compile.Diagnostic) string {
	if d.Line <= 0 {
		return ""
	}
	if d.Column > 0 {
		return fmt.Sprintf("Line %d:%d", d.Line, d.Column)
	}
	return fmt.Sprintf("Line %d", d.Line)
}

func diagnosticItems(ds []compile.Diagnostic) []Item {
	if len(ds) == 0 {
		return nil
	}
	items := make([]Item, 0, len(ds))
	for _, d := range ds {
		items = append(items, Item{
			LocationText: Location(d),
			MessageText:  d.Message,
		})
	}
	return items
}

// errorCount counts a failure without structured errors as one error
func errorCount(n int) string {
	if n <= 1 {
		return "Found 1 error in your code"
	}
	return fmt.Sprintf("Found %d errors in your code", n)
}
