package adapters

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/valentinpelus/voiceboard/pkg/adapters/array"
	"github.com/valentinpelus/voiceboard/pkg/adapters/csvfile"
	"github.com/valentinpelus/voiceboard/pkg/adapters/standard"
	"github.com/valentinpelus/voiceboard/pkg/csvimport"
	"github.com/valentinpelus/voiceboard/pkg/types"
)

// ErrInvalidRecord is returned when a body has a known shape but a record fails validation
var ErrInvalidRecord = errors.New("invalid feedback record")

// errNotThisFormat lets DetectAndConvert move on to the next format
var errNotThisFormat = errors.New("body does not match format")

// FeedbackAdapter converts one ingestion format to ingestion records
type FeedbackAdapter interface {
	ToRecords() ([]types.IngestionRecord, error)
	GetSource() string
}

// Registry manages enabled ingestion formats
type Registry struct {
	enabledAdapters map[string]bool
	validate        *validator.Validate
	now             func() time.Time
}

// NewRegistry creates a new adapter registry with specified enabled formats
// Pass format names: "standard", "array", "csv"
// If no formats specified, all are enabled by default
func NewRegistry(enabledAdapters []string) *Registry {
	registry := &Registry{
		enabledAdapters: make(map[string]bool),
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		now:             time.Now,
	}

	if len(enabledAdapters) == 0 {
		enabledAdapters = []string{"standard", "array", "csv"}
	}
	for _, adapter := range enabledAdapters {
		registry.enabledAdapters[strings.TrimSpace(adapter)] = true
	}

	return registry
}

// IsEnabled checks if a format is enabled
func (r *Registry) IsEnabled(adapterName string) bool {
	return r.enabledAdapters[adapterName]
}

// DetectAndConvert detects the body format and converts it to feedback records
// Returns the records, source name, and any error
func (r *Registry) DetectAndConvert(contentType string, body []byte) ([]types.Feedback, string, error) {
	trimmed := bytes.TrimSpace(body)
	looksJSON := len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')

	var candidates []func() (FeedbackAdapter, error)
	if strings.Contains(strings.ToLower(contentType), "csv") || !looksJSON {
		candidates = append(candidates, r.tryCSV(body))
	} else {
		candidates = append(candidates, r.tryStandard(trimmed), r.tryArray(trimmed))
	}

	var errs []string
	for _, try := range candidates {
		adapter, err := try()
		if errors.Is(err, errNotThisFormat) {
			errs = append(errs, err.Error())
			continue
		}
		if err != nil {
			return nil, "", err
		}

		records, err := adapter.ToRecords()
		if err != nil {
			return nil, adapter.GetSource(), err
		}
		for i, rec := range records {
			if err := r.validate.Struct(rec); err != nil {
				return nil, adapter.GetSource(), fmt.Errorf("%w: [%d] %s", ErrInvalidRecord, i, describe(err))
			}
		}
		return normalize(records), adapter.GetSource(), nil
	}

	return nil, "", fmt.Errorf("failed to parse body from any enabled format: %v", errs)
}

func (r *Registry) tryStandard(body []byte) func() (FeedbackAdapter, error) {
	return func() (FeedbackAdapter, error) {
		if !r.IsEnabled("standard") {
			return nil, fmt.Errorf("standard: %w (disabled)", errNotThisFormat)
		}
		var payload types.IngestionPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("standard: %w: %v", errNotThisFormat, err)
		}
		if payload.Feedbacks == nil {
			return nil, fmt.Errorf("standard: %w: missing feedbacks", errNotThisFormat)
		}
		if err := r.validate.Struct(payload); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRecord, describe(err))
		}
		return &standard.Adapter{Payload: payload}, nil
	}
}

func (r *Registry) tryArray(body []byte) func() (FeedbackAdapter, error) {
	return func() (FeedbackAdapter, error) {
		if !r.IsEnabled("array") {
			return nil, fmt.Errorf("array: %w (disabled)", errNotThisFormat)
		}
		var records []types.IngestionRecord
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("array: %w: %v", errNotThisFormat, err)
		}
		for i, rec := range records {
			if err := r.validate.Struct(rec); err != nil {
				return nil, fmt.Errorf("%w: [%d] %s", ErrInvalidRecord, i, describe(err))
			}
		}
		return &array.Adapter{Records: records}, nil
	}
}

func (r *Registry) tryCSV(body []byte) func() (FeedbackAdapter, error) {
	return func() (FeedbackAdapter, error) {
		if !r.IsEnabled("csv") {
			return nil, fmt.Errorf("csv: %w (disabled)", errNotThisFormat)
		}
		return &csvfile.Adapter{Body: body, Now: r.now()}, nil
	}
}

// normalize applies the same defaults the CSV import uses, plus a pending status
func normalize(records []types.IngestionRecord) []types.Feedback {
	out := make([]types.Feedback, 0, len(records))
	for _, rec := range records {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			id = uuid.New().String()
		}
		product := strings.TrimSpace(rec.Product)
		if product == "" {
			product = types.DefaultProduct
		}
		status := types.Status(rec.Status).OrPending()

		out = append(out, types.Feedback{
			ID:       id,
			Type:     csvimport.NormalizeIssueType(rec.Type),
			Content:  rec.Content,
			Date:     csvimport.NormalizeDateFromRange(rec.Date),
			Product:  product,
			Status:   status,
			Priority: types.Priority(rec.Priority),
		})
	}
	return out
}

// describe flattens validator errors into "field: rule" pairs
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s (got %q)", fe.Namespace(), fe.Tag(), fe.Param(), fmt.Sprint(fe.Value())))
	}
	return strings.Join(parts, "; ")
}
