// Package domain defines the quality-control reference record, its natural
// key, and the persistence contracts implemented by the storage backends.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record holds the reference mean and standard deviation of one analyte for a
// program batch. ID is a surrogate used to address rows during edits.
type Record struct {
	ID                int64    `json:"id"`
	Program           string   `json:"program"`
	Batch             int64    `json:"batch"`
	Analyte           string   `json:"analyte"`
	Unit              string   `json:"unit"`
	Mean              *float64 `json:"mean"`
	StandardDeviation *float64 `json:"standardDeviation"`
}

// Key returns the natural key of the record.
func (r Record) Key() NaturalKey {
	return NaturalKey{Program: r.Program, Batch: r.Batch, Analyte: r.Analyte, Unit: r.Unit}
}

// NaturalKey uniquely identifies a record independent of its surrogate id.
type NaturalKey struct {
	Program string
	Batch   int64
	Analyte string
	Unit    string
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s/%d/%s/%s", k.Program, k.Batch, k.Analyte, k.Unit)
}

// RecordOrder reports whether a sorts before b in listing order (analyte, then unit).
func RecordOrder(a, b Record) bool {
	if a.Analyte != b.Analyte {
		return a.Analyte < b.Analyte
	}
	return a.Unit < b.Unit
}

// OptionalFloat distinguishes a field that was not supplied (Set == false)
// from one explicitly set to null (Set == true, Value == nil) or to a number.
type OptionalFloat struct {
	Set   bool
	Value *float64
}

// Absent returns an OptionalFloat that leaves the field untouched.
func Absent() OptionalFloat { return OptionalFloat{} }

// Null returns an OptionalFloat that clears the field.
func Null() OptionalFloat { return OptionalFloat{Set: true} }

// Float returns an OptionalFloat that sets the field to v.
func Float(v float64) OptionalFloat { return OptionalFloat{Set: true, Value: &v} }

// UnmarshalJSON accepts a JSON number, a numeric string, or null. It is only
// invoked when the key is present, which is what marks the field as Set.
func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = nil
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	var (
		v   float64
		err error
	)
	switch t := raw.(type) {
	case json.Number:
		v, err = t.Float64()
	case string:
		v, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return fmt.Errorf("expected number or null, got %s", string(trimmed))
	}
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", string(trimmed), err)
	}
	o.Value = &v
	return nil
}

// MarshalJSON renders the value or null. Absent values also render as null;
// callers that need to omit them must do so at the containing struct.
func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// EditRequest is a partial edit of one record's reference values.
type EditRequest struct {
	ID                int64         `json:"id"`
	Mean              OptionalFloat `json:"mean"`
	StandardDeviation OptionalFloat `json:"standardDeviation"`
}

// Apply writes the present fields of the edit onto r.
func (e EditRequest) Apply(r *Record) {
	if e.Mean.Set {
		r.Mean = cloneFloat(e.Mean.Value)
	}
	if e.StandardDeviation.Set {
		r.StandardDeviation = cloneFloat(e.StandardDeviation.Value)
	}
}

// Upload is a spreadsheet file submitted for import.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// CloneRecord returns a copy of r that shares no pointers with it.
func CloneRecord(r Record) Record {
	r.Mean = cloneFloat(r.Mean)
	r.StandardDeviation = cloneFloat(r.StandardDeviation)
	return r
}
