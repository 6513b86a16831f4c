package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

var testKeys = []string{"logistic", "decision_tree"}

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "predictions.db"), testKeys)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func testRecord(features string) Record {
	return Record{
		Features: features,
		Labels:   map[string]string{"logistic": "Minor Accident", "decision_tree": "Severe Accident"},
		Probs:    map[string]string{"logistic": "[0.1,0.7,0.1,0.1]"},
	}
}

func TestAppendAndRecent(t *testing.T) {
	l := openTestLedger(t)

	lat, lon := 19.07, 72.88
	rec := testRecord("[19.07, 72.88, 2, 1, 60, 6]")
	rec.Latitude = &lat
	rec.Longitude = &lon
	rec.Timestamp = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	id, err := l.Append(rec)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	records, err := l.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ID != id {
		t.Fatalf("id mismatch: %d vs %d", got.ID, id)
	}
	if got.Features != rec.Features {
		t.Fatalf("features mismatch: %q", got.Features)
	}
	if got.Latitude == nil || *got.Latitude != lat {
		t.Fatalf("latitude not preserved: %v", got.Latitude)
	}
	if got.Labels["decision_tree"] != "Severe Accident" {
		t.Fatalf("label not preserved: %v", got.Labels)
	}
	if got.Probs["logistic"] != "[0.1,0.7,0.1,0.1]" {
		t.Fatalf("probs not preserved: %v", got.Probs)
	}
	if _, ok := got.Probs["decision_tree"]; ok {
		t.Fatal("absent probs should stay absent")
	}
	if !got.Timestamp.Equal(rec.Timestamp) {
		t.Fatalf("timestamp mismatch: %v vs %v", got.Timestamp, rec.Timestamp)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	l := openTestLedger(t)

	for i := 0; i < 5; i++ {
		if _, err := l.Append(testRecord(fmt.Sprintf("[%d]", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	records, err := l.Recent(3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].ID >= records[i-1].ID {
			t.Fatalf("records not newest first: %d then %d", records[i-1].ID, records[i].ID)
		}
	}
}

func TestConcurrentAppendsAssignDistinctIDs(t *testing.T) {
	l := openTestLedger(t)

	const n = 20
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := l.Append(testRecord(fmt.Sprintf("[%d]", i)))
			if err != nil {
				t.Errorf("append %d: %v", i, err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i := 1; i < n; i++ {
		if ids[i] == ids[i-1] {
			t.Fatalf("duplicate id %d", ids[i])
		}
	}

	records, err := l.Recent(n + 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != n {
		t.Fatalf("expected %d records, got %d", n, len(records))
	}
}

func TestAppendAfterCloseIsWriteError(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "predictions.db"), testKeys)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	l.Close()

	_, err = l.Append(testRecord("[1]"))
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected WriteError, got %T: %v", err, err)
	}
}

func TestOpenRequiresKeys(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "predictions.db"), nil); err == nil {
		t.Fatal("expected error for empty key list")
	}
}

func TestExportCSV(t *testing.T) {
	l := openTestLedger(t)

	const n = 4
	for i := 0; i < n; i++ {
		if _, err := l.Append(testRecord(fmt.Sprintf("[%d]", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	var buf bytes.Buffer
	if err := l.ExportCSV(&buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != n+1 {
		t.Fatalf("expected header plus %d rows, got %d", n, len(rows))
	}

	wantCols := l.Columns()
	if len(rows[0]) != len(wantCols) {
		t.Fatalf("header width %d, want %d", len(rows[0]), len(wantCols))
	}
	for i, col := range wantCols {
		if rows[0][i] != col {
			t.Fatalf("header column %d: %q, want %q", i, rows[0][i], col)
		}
	}

	// Body rows are in insertion order.
	for i := 1; i < len(rows); i++ {
		if rows[i][2] != fmt.Sprintf("[%d]", i-1) {
			t.Fatalf("row %d out of order: %v", i, rows[i])
		}
	}
}
