package csvfile

import (
	"bytes"
	"strings"
	"time"

	"github.com/valentinpelus/voiceboard/pkg/csvimport"
	"github.com/valentinpelus/voiceboard/pkg/types"
)

// Adapter converts a CSV export (same columns the import screen accepts)
type Adapter struct {
	Body []byte
	Now  time.Time
}

// ToRecords parses the CSV body into ingestion records.
// An unrecognised status is passed through as-is so validation rejects it.
func (a *Adapter) ToRecords() ([]types.IngestionRecord, error) {
	rows, err := csvimport.ReadRows(bytes.NewReader(a.Body))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, csvimport.ErrNoRows
	}

	records := make([]types.IngestionRecord, 0, len(rows))
	for i, row := range rows {
		f := csvimport.NormalizeRow(row, i, a.Now)

		status := string(f.Status)
		if raw, _ := row.Lookup(csvimport.StatusColumns); status == "" {
			status = strings.TrimSpace(raw)
		}

		records = append(records, types.IngestionRecord{
			ID:       f.ID,
			Content:  f.Content,
			Type:     f.Type,
			Date:     f.Date,
			Product:  f.Product,
			Status:   status,
			Priority: string(f.Priority),
		})
	}
	return records, nil
}

// GetSource returns the source identifier
func (a *Adapter) GetSource() string {
	return "csv"
}
