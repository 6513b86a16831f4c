package ledger

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

// ExportCSV streams the complete ledger in insertion order, starting with a
// header row that names every column.
func (l *Ledger) ExportCSV(w io.Writer) error {
	cols := l.Columns()

	rows, err := l.db.Query(
		"SELECT " + strings.Join(cols, ", ") + " FROM predictions ORDER BY id ASC")
	if err != nil {
		return err
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}

	records, err := l.scanRecords(rows)
	if err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Timestamp.Format(timeLayout),
			rec.Features,
			formatCoord(rec.Latitude),
			formatCoord(rec.Longitude),
		}
		for _, key := range l.keys {
			row = append(row, rec.Labels[key])
		}
		for _, key := range l.keys {
			row = append(row, rec.Probs[key])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
