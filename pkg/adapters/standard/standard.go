package standard

import (
	"github.com/valentinpelus/voiceboard/pkg/types"
)

// Adapter converts the documented ingestion body {"feedbacks": [...]}
type Adapter struct {
	Payload types.IngestionPayload
}

// ToRecords returns the records of the payload as sent
func (a *Adapter) ToRecords() ([]types.IngestionRecord, error) {
	return a.Payload.Feedbacks, nil
}

// GetSource returns the source identifier
func (a *Adapter) GetSource() string {
	return "standard"
}
