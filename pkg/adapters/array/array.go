package array

import (
	"github.com/valentinpelus/voiceboard/pkg/types"
)

// Adapter converts a bare JSON array of ingestion records
type Adapter struct {
	Records []types.IngestionRecord
}

// ToRecords returns the records as sent
func (a *Adapter) ToRecords() ([]types.IngestionRecord, error) {
	return a.Records, nil
}

// GetSource returns the source identifier
func (a *Adapter) GetSource() string {
	return "array"
}
