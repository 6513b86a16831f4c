// Package ledger persists one durable record per inference transaction.
// Records are append-only: nothing in the service mutates or deletes them.
package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const timeLayout = "2006-01-02 15:04:05"

// WriteError reports a persistence failure. Inference already succeeded when
// this surfaces; callers report "computed but not recorded" rather than
// hiding the partial state.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "ledger write: " + e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

// Record is one inference transaction. Labels and Probs are keyed by the
// model column key; a missing Probs entry means the model had no probability
// output.
type Record struct {
	ID        int64
	Timestamp time.Time
	Features  string
	Latitude  *float64
	Longitude *float64
	Labels    map[string]string
	Probs     map[string]string
}

// Ledger owns a single sqlite handle. Writers are serialized by a mutex so
// concurrent appends can neither interleave column values nor skip ids.
type Ledger struct {
	db   *sql.DB
	mu   sync.Mutex
	keys []string
}

// Open creates (if needed) and opens the predictions table with one label
// column and one serialized-probabilities column per model key, in key order.
func Open(path string, keys []string) (*Ledger, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one model key required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	cols := []string{
		"id INTEGER PRIMARY KEY AUTOINCREMENT",
		"timestamp TEXT NOT NULL",
		"features TEXT NOT NULL",
		"latitude REAL",
		"longitude REAL",
	}
	for _, key := range keys {
		cols = append(cols, key+"_pred TEXT")
	}
	for _, key := range keys {
		cols = append(cols, key+"_probs TEXT")
	}
	query := "CREATE TABLE IF NOT EXISTS predictions (" + strings.Join(cols, ", ") + ")"
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db, keys: append([]string(nil), keys...)}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Columns returns the full column list in schema order.
func (l *Ledger) Columns() []string {
	cols := []string{"id", "timestamp", "features", "latitude", "longitude"}
	for _, key := range l.keys {
		cols = append(cols, key+"_pred")
	}
	for _, key := range l.keys {
		cols = append(cols, key+"_probs")
	}
	return cols
}

// Append durably writes one record and returns its assigned id. Ids are
// strictly increasing across the life of the database file.
func (l *Ledger) Append(rec Record) (int64, error) {
	cols := l.Columns()[1:] // id is assigned by sqlite
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	args := make([]interface{}, 0, len(cols))
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	args = append(args, ts.UTC().Format(timeLayout), rec.Features, nullFloat(rec.Latitude), nullFloat(rec.Longitude))
	for _, key := range l.keys {
		args = append(args, rec.Labels[key])
	}
	for _, key := range l.keys {
		args = append(args, rec.Probs[key])
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.Exec(
		"INSERT INTO predictions ("+strings.Join(cols, ", ")+") VALUES ("+placeholders+")",
		args...)
	if err != nil {
		return 0, &WriteError{Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &WriteError{Err: err}
	}
	return id, nil
}

// Recent returns up to n records, most recent first.
func (l *Ledger) Recent(n int) ([]Record, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := l.db.Query(
		"SELECT "+strings.Join(l.Columns(), ", ")+" FROM predictions ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return l.scanRecords(rows)
}

func (l *Ledger) scanRecords(rows *sql.Rows) ([]Record, error) {
	records := make([]Record, 0)
	for rows.Next() {
		var (
			id       int64
			ts       string
			features string
			lat, lon sql.NullFloat64
		)
		preds := make([]sql.NullString, len(l.keys))
		probs := make([]sql.NullString, len(l.keys))

		targets := []interface{}{&id, &ts, &features, &lat, &lon}
		for i := range preds {
			targets = append(targets, &preds[i])
		}
		for i := range probs {
			targets = append(targets, &probs[i])
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		rec := Record{
			ID:       id,
			Features: features,
			Labels:   make(map[string]string, len(l.keys)),
			Probs:    make(map[string]string, len(l.keys)),
		}
		if t, err := time.Parse(timeLayout, ts); err == nil {
			rec.Timestamp = t.UTC()
		}
		if lat.Valid {
			v := lat.Float64
			rec.Latitude = &v
		}
		if lon.Valid {
			v := lon.Float64
			rec.Longitude = &v
		}
		for i, key := range l.keys {
			if preds[i].Valid {
				rec.Labels[key] = preds[i].String
			}
			if probs[i].Valid && probs[i].String != "" {
				rec.Probs[key] = probs[i].String
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
