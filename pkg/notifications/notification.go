package notifications

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type is the closed set of notification categories.
type Type string

const (
	TypeEnrollmentApproved Type = "enrollment_approved"
	TypeEnrollmentRejected Type = "enrollment_rejected"
	TypeAssignmentGraded   Type = "assignment_graded"
	TypeCourseCreated      Type = "course_created"
	TypeCourseUpdated      Type = "course_updated"
	TypeNewAssignment      Type = "new_assignment"
	TypeDeadlineReminder   Type = "deadline_reminder"
	TypeSystem             Type = "system"
)

// Types lists every category in a stable order.
func Types() []Type {
	return []Type{
		TypeEnrollmentApproved,
		TypeEnrollmentRejected,
		TypeAssignmentGraded,
		TypeCourseCreated,
		TypeCourseUpdated,
		TypeNewAssignment,
		TypeDeadlineReminder,
		TypeSystem,
	}
}

// Valid reports whether t is one of Types.
func (t Type) Valid() bool {
	for _, v := range Types() {
		if t == v {
			return true
		}
	}
	return false
}

// Metadata is an opaque key/value payload attached to a notification.
// It is stored as JSON, so numeric values come back as float64.
type Metadata map[string]any

// Value implements driver.Valuer. Nil metadata is stored as NULL.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata column type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Notification is a message owned by exactly one user.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	Type      Type       `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Metadata  Metadata   `json:"metadata,omitempty"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// CreateRequest carries the caller-supplied fields of a new notification.
type CreateRequest struct {
	UserID   int64    `json:"userId"`
	Type     Type     `json:"type"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Validate checks the fields a caller must supply.
func (r CreateRequest) Validate() error {
	var problems []string
	if r.UserID <= 0 {
		problems = append(problems, "userId must be positive")
	}
	if !r.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown type %q", r.Type))
	}
	if strings.TrimSpace(r.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(r.Message) == "" {
		problems = append(problems, "message is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidNotification, strings.Join(problems, "; "))
	}
	return nil
}
