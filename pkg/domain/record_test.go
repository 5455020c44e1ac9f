package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestEditRequestDistinguishesAbsentFromNull(t *testing.T) {
	var req EditRequest
	if err := json.Unmarshal([]byte(`{"id": 7, "mean": null}`), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.ID != 7 {
		t.Fatalf("expected id 7, got %d", req.ID)
	}
	if !req.Mean.Set || req.Mean.Value != nil {
		t.Fatalf("expected explicit null mean, got %+v", req.Mean)
	}
	if req.StandardDeviation.Set {
		t.Fatalf("expected standardDeviation absent")
	}
}

func TestEditRequestCoercesNumbers(t *testing.T) {
	var req EditRequest
	if err := json.Unmarshal([]byte(`{"id": 1, "mean": 4, "standardDeviation": "0.8"}`), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Mean.Value == nil || *req.Mean.Value != 4 {
		t.Fatalf("unexpected mean %+v", req.Mean)
	}
	if req.StandardDeviation.Value == nil || *req.StandardDeviation.Value != 0.8 {
		t.Fatalf("unexpected standardDeviation %+v", req.StandardDeviation)
	}
}

func TestEditRequestRejectsNonNumeric(t *testing.T) {
	for _, body := range []string{
		`{"id": 1, "mean": "abc"}`,
		`{"id": 1, "mean": true}`,
		`{"id": 1, "standardDeviation": [1]}`,
	} {
		var req EditRequest
		if err := json.Unmarshal([]byte(body), &req); err == nil {
			t.Fatalf("expected error for %s", body)
		}
	}
}

func TestEditRequestApply(t *testing.T) {
	sd := 0.5
	rec := Record{ID: 3, Mean: nil, StandardDeviation: &sd}

	EditRequest{ID: 3, Mean: Float(4.5)}.Apply(&rec)
	EditRequest{ID: 3, StandardDeviation: Null()}.Apply(&rec)
	if rec.Mean == nil || *rec.Mean != 4.5 {
		t.Fatalf("expected mean 4.5, got %v", rec.Mean)
	}
	if rec.StandardDeviation != nil {
		t.Fatalf("expected cleared standard deviation")
	}

	EditRequest{ID: 3}.Apply(&rec)
	if rec.Mean == nil || *rec.Mean != 4.5 {
		t.Fatalf("empty edit must not change mean")
	}
}

func TestRecordOrder(t *testing.T) {
	a := Record{Analyte: "Glucose", Unit: "mg/dL"}
	b := Record{Analyte: "Glucose", Unit: "mmol/L"}
	c := Record{Analyte: "Albumin", Unit: "g/L"}
	if !RecordOrder(a, b) || RecordOrder(b, a) {
		t.Fatalf("unit must break analyte ties")
	}
	if !RecordOrder(c, a) {
		t.Fatalf("analyte must sort first")
	}
}

func TestBadInputErrorMessage(t *testing.T) {
	err := fmt.Errorf("import: %w", BadInputError{Columns: []string{"Unit"}})
	if !IsBadInput(err) {
		t.Fatalf("expected wrapped bad input")
	}
	if got := (BadInputError{Columns: []string{"Unit"}}).Error(); got != "missing columns: Unit" {
		t.Fatalf("unexpected message %q", got)
	}
	got := BadInputError{Columns: []string{"Batch"}, Row: 4, Reason: "not an integer"}.Error()
	if got != "not an integer: Batch (row 4)" {
		t.Fatalf("unexpected message %q", got)
	}
	if IsBadInput(errors.New("boom")) {
		t.Fatalf("plain error is not bad input")
	}
}
