package ingest

import (
	"strings"
	"time"

	"github.com/jonathan/application-tracker/internal/types"
)

// ApplicationDateLayout is the only application date format accepted on create
const ApplicationDateLayout = "2006-01-02"

// NewApplication builds the record created for the first message about a (company, role) pair
func NewApplication(msg types.Message, cls types.Classification, rec types.ExtractedRecord, now time.Time) *types.ApplicationRecord {
	status := rec.Status
	if status == "" {
		status = types.StatusApplied
	}

	app := &types.ApplicationRecord{
		CompanyName:     strings.TrimSpace(rec.CompanyName),
		RoleTitle:       strings.TrimSpace(rec.RoleTitle),
		Status:          status,
		Location:        optional(rec.Location),
		SalaryRange:     optional(rec.SalaryRange),
		ApplicationURL:  optional(rec.ApplicationURL),
		ApplicationDate: parseApplicationDate(rec.ApplicationDate),
		Metadata:        make(map[string]string),
	}
	setMetadata(app, msg, cls, rec)
	app.Notes = append(app.Notes, noteFor(cls, rec, now))
	return app
}

// ApplyUpdate merges a later message into an existing record.
// Status only moves to an equal or higher priority, optional fields are only
// overwritten by non-empty values, and a note is always appended.
func ApplyUpdate(policy types.StatusPolicy, app *types.ApplicationRecord, msg types.Message, cls types.Classification, rec types.ExtractedRecord, now time.Time) {
	if rec.Status != "" && policy.Advances(app.Status, rec.Status) {
		app.Status = rec.Status
	}
	if v := optional(rec.Location); v != nil {
		app.Location = v
	}
	if v := optional(rec.SalaryRange); v != nil {
		app.SalaryRange = v
	}
	if v := optional(rec.ApplicationURL); v != nil {
		app.ApplicationURL = v
	}
	if app.Metadata == nil {
		app.Metadata = make(map[string]string)
	}
	setMetadata(app, msg, cls, rec)
	app.Notes = append(app.Notes, noteFor(cls, rec, now))
}

func setMetadata(app *types.ApplicationRecord, msg types.Message, cls types.Classification, rec types.ExtractedRecord) {
	app.Metadata[types.MetaLastEmailSubject] = msg.Subject
	app.Metadata[types.MetaLastEmailFrom] = msg.Sender
	app.Metadata[types.MetaLastMessageID] = msg.ID
	app.Metadata[types.MetaClassification] = string(cls.Category)
	if !msg.Date.IsZero() {
		app.Metadata[types.MetaLastEmailDate] = msg.Date.UTC().Format(time.RFC3339)
	}

	for key, value := range map[string]string{
		types.MetaNextSteps:         rec.NextSteps,
		types.MetaInterviewDateTime: rec.InterviewDateTime,
		types.MetaContactPerson:     rec.ContactPerson,
	} {
		if v := strings.TrimSpace(value); v != "" {
			app.Metadata[key] = v
		}
	}
}

func noteFor(cls types.Classification, rec types.ExtractedRecord, now time.Time) types.Note {
	return types.Note{
		At:       now,
		Category: cls.Category,
		Text:     strings.TrimSpace(rec.Notes),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// parseApplicationDate accepts YYYY-MM-DD only; anything else leaves the date unset
func parseApplicationDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(ApplicationDateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}
