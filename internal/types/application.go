package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job application
type Status string

// Status values
const (
	StatusApplied            Status = "applied"
	StatusInProgress         Status = "in_progress"
	StatusFollowUpNeeded     Status = "follow_up_needed"
	StatusInterviewScheduled Status = "interview_scheduled"
	StatusOfferReceived      Status = "offer_received"
	StatusRejected           Status = "rejected"
	StatusUnknown            Status = "unknown"
)

// AllStatuses lists every status in default priority order, unknown last
var AllStatuses = []Status{
	StatusApplied,
	StatusInProgress,
	StatusFollowUpNeeded,
	StatusInterviewScheduled,
	StatusOfferReceived,
	StatusRejected,
	StatusUnknown,
}

// categoryStatus maps classification categories to the status they imply
var categoryStatus = map[Category]Status{
	CategoryApplicationConfirmation: StatusApplied,
	CategoryRejection:               StatusRejected,
	CategoryInterviewRequest:        StatusInterviewScheduled,
	CategoryOffer:                   StatusOfferReceived,
	CategoryFollowUp:                StatusFollowUpNeeded,
	CategoryGeneral:                 StatusInProgress,
}

// StatusForCategory returns the status implied by a category, or StatusUnknown
func StatusForCategory(c Category) Status {
	if s, ok := categoryStatus[c]; ok {
		return s
	}
	return StatusUnknown
}

// ParseStatus normalises a raw status string ("Interview Scheduled" -> interview_scheduled).
// The second return value is false when the value is not a known status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_"))
	for _, known := range AllStatuses {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// ExtractedRecord holds the structured application fields pulled out of a message.
// Empty strings mean the value could not be determined.
type ExtractedRecord struct {
	CompanyName       string `json:"company_name"`
	RoleTitle         string `json:"role_title"`
	Location          string `json:"location,omitempty"`
	Status            Status `json:"status"`
	ApplicationDate   string `json:"application_date,omitempty"` // raw date text, parsed leniently on create
	SalaryRange       string `json:"salary_range,omitempty"`
	ApplicationURL    string `json:"application_url,omitempty"`
	NextSteps         string `json:"next_steps,omitempty"`
	InterviewDateTime string `json:"interview_datetime,omitempty"`
	ContactPerson     string `json:"contact_person,omitempty"`
	Notes             string `json:"additional_notes,omitempty"`

	// Fallback is set when the record came from heuristics rather than the extractor
	Fallback bool `json:"-"`
}

// Complete reports whether the record has both a company and a role
func (r ExtractedRecord) Complete() bool {
	return strings.TrimSpace(r.CompanyName) != "" && strings.TrimSpace(r.RoleTitle) != ""
}

// Note is a single timestamped entry in an application's note log
type Note struct {
	At       time.Time `json:"at"`
	Category Category  `json:"category"`
	Text     string    `json:"text"`
}

// String renders the note as "[YYYY-MM-DD HH:MM] category: text"
func (n Note) String() string {
	return "[" + n.At.Format("2006-01-02 15:04") + "] " + string(n.Category) + ": " + n.Text
}

// Metadata keys stored on an application record
const (
	MetaLastEmailSubject  = "last_email_subject"
	MetaLastEmailFrom     = "last_email_from"
	MetaLastEmailDate     = "last_email_date"
	MetaLastMessageID     = "last_message_id"
	MetaClassification    = "classification"
	MetaNextSteps         = "next_steps"
	MetaInterviewDateTime = "interview_datetime"
	MetaContactPerson     = "contact_person"
)

// ApplicationRecord is the persisted state of one job application, keyed by (company, role)
type ApplicationRecord struct {
	ID              uuid.UUID         `json:"id"`
	CompanyName     string            `json:"company_name"`
	RoleTitle       string            `json:"role_title"`
	Status          Status            `json:"status"`
	Location        *string           `json:"location,omitempty"`
	SalaryRange     *string           `json:"salary_range,omitempty"`
	ApplicationURL  *string           `json:"application_url,omitempty"`
	ApplicationDate *time.Time        `json:"application_date,omitempty"`
	Notes           []Note            `json:"notes"`
	Metadata        map[string]string `json:"metadata"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// NotesText joins the note log into a single newline separated string
func (a *ApplicationRecord) NotesText() string {
	lines := make([]string, 0, len(a.Notes))
	for _, n := range a.Notes {
		lines = append(lines, n.String())
	}
	return strings.Join(lines, "\n")
}

// Clone returns a deep copy of the record
func (a *ApplicationRecord) Clone() *ApplicationRecord {
	if a == nil {
		return nil
	}
	c := *a
	c.Location = cloneString(a.Location)
	c.SalaryRange = cloneString(a.SalaryRange)
	c.ApplicationURL = cloneString(a.ApplicationURL)
	if a.ApplicationDate != nil {
		d := *a.ApplicationDate
		c.ApplicationDate = &d
	}
	c.Notes = append([]Note(nil), a.Notes...)
	c.Metadata = make(map[string]string, len(a.Metadata))
	for k, v := range a.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// LedgerEntry records that a message has been processed
type LedgerEntry struct {
	MessageID     string     `json:"message_id"`
	Subject       string     `json:"subject"`
	Sender        string     `json:"sender"`
	ReceivedAt    time.Time  `json:"received_at"`
	Category      Category   `json:"category"`
	IsJobRelated  bool       `json:"is_job_related"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
	ProcessedAt   time.Time  `json:"processed_at"`
}

// Stats summarises the application store
type Stats struct {
	TotalApplications int            `json:"total_applications"`
	ByStatus          map[Status]int `json:"by_status"`
	ProcessedMessages int            `json:"processed_messages"`
}
