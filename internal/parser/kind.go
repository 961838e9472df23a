// Package parser implements the column schema: a tagged-variant
// ColumnReader set driven in order by a LineParser against whitespace
// tokens of one log line.
package parser

import "fmt"

// Kind is the tag of a ColumnReader variant.
type Kind int

const (
	// Null skips one token without contributing a label or value.
	Null Kind = iota
	// Number parses the token as a 64-bit float and records it as a
	// value for the reader's metric name.
	Number
	// CLFNumber is like Number except the literal token "-" means 0.
	CLFNumber
	// Label records the token as the value of the reader's label name.
	Label
	// RequestHeader parses a quoted "METHOD PATH PROTO" token group.
	RequestHeader
	// Request is kept for schema compatibility with RequestHeader.
	Request
	// CLFDate parses a "[dd/Mon/YYYY:HH:MM:SS +ZZZZ]" token group and
	// contributes nothing.
	CLFDate
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Number:
		return "number"
	case CLFNumber:
		return "clf_number"
	case Label:
		return "label"
	case RequestHeader:
		return "request_header"
	case Request:
		return "request"
	case CLFDate:
		return "clf_date"
	default:
		return "unknown"
	}
}

// ParseKind maps a config-file kind literal to a Kind. An empty string
// is not accepted here; schema "null" entries are represented by a
// ColumnReader whose Kind is Null, not by this string.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "number":
		return Number, nil
	case "clf_number":
		return CLFNumber, nil
	case "label":
		return Label, nil
	case "request_header":
		return RequestHeader, nil
	case "request":
		return Request, nil
	case "clf_date":
		return CLFDate, nil
	default:
		return 0, fmt.Errorf("unknown column kind %q", s)
	}
}

// ColumnReader is one entry of a LineParser's ordered schema.
type ColumnReader struct {
	Kind Kind
	// Name is the label name (Label) or metric name (Number, CLFNumber).
	// Unused for RequestHeader, Request, CLFDate and Null.
	Name string
	// Histogram names the histogram family this column contributes to,
	// when non-empty. Valid only for Number/CLFNumber.
	Histogram string
}
