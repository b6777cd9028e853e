// Package replica holds the replica status vocabulary and its one
// translation table between scenario symbols, catalog codes and names.
package replica

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Status is the state of a replica at one storage location.
type Status int

const (
	// Unknown is a status the harness cannot interpret. It never equals an
	// expected status.
	Unknown Status = iota

	// Good is a consistent, usable replica.
	Good

	// Stale is an out-of-date replica.
	Stale

	// ReadLocked is a replica locked for reading.
	ReadLocked

	// WriteLocked is a replica locked for writing.
	WriteLocked

	// Absent means there is no replica at the location.
	Absent
)

// noCode marks statuses that have no catalog representation.
const noCode = -1

var table = []struct {
	status Status
	symbol string
	code   int
	name   string
}{
	{Good, "&", 1, "GOOD"},
	{Stale, "X", 0, "STALE"},
	{ReadLocked, "R", 3, "READ_LOCKED"},
	{WriteLocked, "W", 4, "WRITE_LOCKED"},
	{Absent, "-", noCode, "ABSENT"},
}

// IntermediateSymbol is the catalog's in-flight replica marker. It is not
// part of the status set.
const IntermediateSymbol = "?"

// ErrIntermediate is returned when a scenario names the intermediate status.
var ErrIntermediate = errors.New("intermediate replica status '?' is not a scenario status")

// ParseSymbol translates a scenario symbol or a status name.
func ParseSymbol(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if s == IntermediateSymbol {
		return Unknown, ErrIntermediate
	}
	for _, row := range table {
		if s == row.symbol || strings.EqualFold(s, row.name) {
			return row.status, nil
		}
	}
	return Unknown, fmt.Errorf("unknown replica status %q", s)
}

// FromCode translates a catalog status code. Unrecognized codes give Unknown.
func FromCode(code int) Status {
	for _, row := range table {
		if row.code != noCode && row.code == code {
			return row.status
		}
	}
	return Unknown
}

// ParseListed translates a status as printed in a replica listing: either a
// symbol or a numeric code. Anything else, the intermediate marker
// included, is Unknown.
func ParseListed(s string) Status {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return FromCode(n)
	}
	for _, row := range table {
		if row.status != Absent && s == row.symbol {
			return row.status
		}
	}
	return Unknown
}

// Symbol returns the scenario symbol.
func (s Status) Symbol() string {
	for _, row := range table {
		if row.status == s {
			return row.symbol
		}
	}
	return IntermediateSymbol
}

// Code returns the catalog status code. Absent and Unknown have none.
func (s Status) Code() (int, bool) {
	for _, row := range table {
		if row.status == s && row.code != noCode {
			return row.code, true
		}
	}
	return 0, false
}

// String returns the status name.
func (s Status) String() string {
	for _, row := range table {
		if row.status == s {
			return row.name
		}
	}
	return "UNKNOWN"
}

// Present reports whether the status describes an existing replica.
func (s Status) Present() bool {
	return s != Absent && s != Unknown
}

// UnmarshalText accepts a symbol or a name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseSymbol(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText writes the symbol.
func (s Status) MarshalText() ([]byte, error) {
	if s == Unknown {
		return nil, errors.New("cannot encode unknown replica status")
	}
	return []byte(s.Symbol()), nil
}
