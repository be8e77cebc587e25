package types

// Status is the workflow state of a feedback record.
// The zero value means the status has not been set yet (imported records).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusResolved   Status = "resolved"
	StatusArchived   Status = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusResolved, StatusArchived:
		return true
	}
	return false
}

// OrPending returns s, or StatusPending when s is unset.
func (s Status) OrPending() Status {
	if s == "" {
		return StatusPending
	}
	return s
}

// Priority is only used by the management views.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// DefaultProduct is used when the source data carries no product.
const DefaultProduct = "理财通"

// Canonical issue categories.
const (
	CategoryAccount     = "账户问题"
	CategoryFunctional  = "功能问题"
	CategoryUI          = "界面优化"
	CategoryOperational = "操作困难"
	CategoryPerformance = "性能问题"

	// DefaultIssueType is assigned when the source has no issue type at all.
	DefaultIssueType = "其他"
)

// Feedback represents one user-submitted complaint or suggestion
type Feedback struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Content  string   `json:"content"`
	Date     string   `json:"date"` // YYYY-MM-DD or empty
	Product  string   `json:"product"`
	Status   Status   `json:"status,omitempty"`
	Priority Priority `json:"priority,omitempty"`
}

// Patch is a partial update of a Feedback record. Nil fields are left untouched.
type Patch struct {
	Type     *string   `json:"type,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Date     *string   `json:"date,omitempty"`
	Product  *string   `json:"product,omitempty"`
	Status   *Status   `json:"status,omitempty" validate:"omitempty,oneof=pending processing resolved archived"`
	Priority *Priority `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`
}

// Apply merges the set fields of p into f.
func (p Patch) Apply(f *Feedback) {
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.Content != nil {
		f.Content = *p.Content
	}
	if p.Date != nil {
		f.Date = *p.Date
	}
	if p.Product != nil {
		f.Product = *p.Product
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.Priority != nil {
		f.Priority = *p.Priority
	}
}

// IsEmpty reports whether the patch sets no field.
func (p Patch) IsEmpty() bool {
	return p.Type == nil && p.Content == nil && p.Date == nil &&
		p.Product == nil && p.Status == nil && p.Priority == nil
}

// IngestionRecord is one entry of the bulk JSON ingestion contract.
type IngestionRecord struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Type     string `json:"type"`
	Date     string `json:"date"`
	Product  string `json:"product"`
	Status   string `json:"status" validate:"omitempty,oneof=pending processing resolved archived"`
	Priority string `json:"priority" validate:"omitempty,oneof=high medium low"`
}

// IngestionPayload is the body an external ingestion collaborator sends:
// {"feedbacks": [...]}
type IngestionPayload struct {
	Feedbacks []IngestionRecord `json:"feedbacks" validate:"dive"`
}
