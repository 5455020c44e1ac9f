package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned when a seed token does not match the configured secret.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound indicates that a record id does not resolve.
type ErrNotFound struct {
	ID int64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("record %d not found", e.ID)
}

// BadInputError reports input that cannot be coerced into records. Row is the
// 1-based sheet row (0 when the error concerns the whole file).
type BadInputError struct {
	Columns []string
	Row     int
	Reason  string
}

func (e BadInputError) Error() string {
	var b strings.Builder
	switch {
	case e.Reason != "":
		b.WriteString(e.Reason)
	case len(e.Columns) > 0:
		b.WriteString("missing columns")
	default:
		b.WriteString("bad input")
	}
	if len(e.Columns) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Columns, ", "))
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " (row %d)", e.Row)
	}
	return b.String()
}

// IsBadInput reports whether err wraps a BadInputError.
func IsBadInput(err error) bool {
	var target BadInputError
	return errors.As(err, &target)
}
