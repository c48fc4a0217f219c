// Package extraction pulls structured application fields out of job-related messages.
package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/llm"
	"github.com/jonathan/application-tracker/internal/prompts"
	"github.com/jonathan/application-tracker/internal/schemas"
	"github.com/jonathan/application-tracker/internal/types"
)

// MaxBodyChars is the longest body sent to the model; longer bodies are cut and suffixed with "..."
const MaxBodyChars = 3000

// ExtractionError describes why the model output could not be used
type ExtractionError struct {
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction failed: %s", e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// response is the JSON shape the model is asked to return; every field but status may be null
type response struct {
	CompanyName       *string `json:"company_name"`
	RoleTitle         *string `json:"role_title"`
	Location          *string `json:"location"`
	Status            string  `json:"status"`
	ApplicationDate   *string `json:"application_date"`
	SalaryRange       *string `json:"salary_range"`
	ApplicationURL    *string `json:"application_url"`
	NextSteps         *string `json:"next_steps"`
	InterviewDateTime *string `json:"interview_datetime"`
	ContactPerson     *string `json:"contact_person"`
	AdditionalNotes   *string `json:"additional_notes"`
}

// Extractor turns a classified message into an ExtractedRecord
type Extractor struct {
	client     llm.Client
	heuristics Heuristics
	tier       llm.ModelTier
	validate   *validator.Validate
	logger     *zap.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithHeuristics replaces the fallback strategy
func WithHeuristics(h Heuristics) Option {
	return func(e *Extractor) {
		if h != nil {
			e.heuristics = h
		}
	}
}

// WithTier selects the model tier (default standard)
func WithTier(tier llm.ModelTier) Option {
	return func(e *Extractor) { e.tier = tier }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor using DefaultHeuristics for fallbacks
func New(client llm.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client:     client,
		heuristics: DefaultHeuristics{},
		tier:       llm.TierStandard,
		validate:   validator.New(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract never fails: when the model cannot be used the record is built by the heuristics
// and marked as a fallback.
func (e *Extractor) Extract(ctx context.Context, msg types.Message, cls types.Classification) types.ExtractedRecord {
	rec, err := e.extract(ctx, msg, cls)
	if err != nil {
		e.logger.Warn("extraction failed, using heuristics", zap.String("message_id", msg.ID), zap.Error(err))
		return e.Fallback(msg, cls, err)
	}
	e.logger.Debug("extracted application",
		zap.String("message_id", msg.ID),
		zap.String("company", rec.CompanyName),
		zap.String("role", rec.RoleTitle),
		zap.String("status", string(rec.Status)),
	)
	return rec
}

// ExtractBatch extracts each message with its classification; inputs are paired by index
func (e *Extractor) ExtractBatch(ctx context.Context, msgs []types.Message, cls []types.Classification) []types.ExtractedRecord {
	out := make([]types.ExtractedRecord, len(msgs))
	for i, m := range msgs {
		var c types.Classification
		if i < len(cls) {
			c = cls[i]
		}
		out[i] = e.Extract(ctx, m, c)
	}
	return out
}

// Fallback builds a record from the heuristics and the category status mapping
func (e *Extractor) Fallback(msg types.Message, cls types.Classification, cause error) types.ExtractedRecord {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	return types.ExtractedRecord{
		CompanyName: e.heuristics.Company(msg),
		RoleTitle:   e.heuristics.Role(msg),
		Status:      types.StatusForCategory(cls.Category),
		Notes:       "Extraction error: " + reason,
		Fallback:    true,
	}
}

func (e *Extractor) extract(ctx context.Context, msg types.Message, cls types.Classification) (types.ExtractedRecord, error) {
	if e.client == nil {
		return types.ExtractedRecord{}, &ExtractionError{Message: "no LLM client configured"}
	}

	prompt, err := BuildPrompt(msg, cls)
	if err != nil {
		return types.ExtractedRecord{}, &ExtractionError{Message: "failed to build prompt", Cause: err}
	}

	raw, err := e.client.GenerateJSON(ctx, prompt, e.tier)
	if err != nil {
		return types.ExtractedRecord{}, &ExtractionError{Message: "model call failed", Cause: err}
	}

	cleaned := llm.CleanJSONBlock(raw)
	if err := schemas.Validate(schemas.Extraction, []byte(cleaned)); err != nil {
		return types.ExtractedRecord{}, &ExtractionError{Message: "response does not match schema", Cause: err}
	}

	resp, err := llm.ParseJSON[response](cleaned)
	if err != nil {
		return types.ExtractedRecord{}, &ExtractionError{Message: "invalid response", Cause: err}
	}

	return e.toRecord(resp, cls), nil
}

func (e *Extractor) toRecord(resp response, cls types.Classification) types.ExtractedRecord {
	rec := types.ExtractedRecord{
		CompanyName:       value(resp.CompanyName),
		RoleTitle:         value(resp.RoleTitle),
		Location:          value(resp.Location),
		ApplicationDate:   value(resp.ApplicationDate),
		SalaryRange:       value(resp.SalaryRange),
		ApplicationURL:    value(resp.ApplicationURL),
		NextSteps:         value(resp.NextSteps),
		InterviewDateTime: value(resp.InterviewDateTime),
		ContactPerson:     value(resp.ContactPerson),
		Notes:             value(resp.AdditionalNotes),
	}

	if s, ok := types.ParseStatus(resp.Status); ok && s != types.StatusUnknown {
		rec.Status = s
	} else {
		rec.Status = types.StatusForCategory(cls.Category)
	}

	if rec.ApplicationURL != "" && e.validate.Var(rec.ApplicationURL, "url") != nil {
		e.logger.Debug("dropping invalid application URL", zap.String("url", rec.ApplicationURL))
		rec.ApplicationURL = ""
	}
	return rec
}

// value dereferences an optional model field, treating placeholder text as absent
func value(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	switch strings.ToLower(v) {
	case "null", "none", "n/a", "na", "unknown", "not specified", "not mentioned":
		return ""
	}
	return v
}

// ApplicationUpdateSchema describes the fields the model must return
func ApplicationUpdateSchema(description string) llm.ExtractionSchema {
	nullable := `"string" | null`
	return llm.ExtractionSchema{
		Name:        "ApplicationUpdate",
		Description: description,
		Fields: []llm.SchemaField{
			{Name: "company_name", Type: nullable, Description: "Hiring company, not the applicant tracking system vendor"},
			{Name: "role_title", Type: nullable, Description: "Job title or position"},
			{Name: "location", Type: nullable, Description: "City, state, country or \"Remote\""},
			{Name: "status", Type: `"applied" | "in_progress" | "follow_up_needed" | "interview_scheduled" | "offer_received" | "rejected"`, Description: "Current application status", Required: true},
			{Name: "application_date", Type: nullable, Description: "Date applied, YYYY-MM-DD"},
			{Name: "salary_range", Type: nullable, Description: "Salary or range if mentioned"},
			{Name: "application_url", Type: nullable, Description: "Link to the posting or application portal"},
			{Name: "next_steps", Type: nullable, Description: "Action items for the applicant"},
			{Name: "interview_datetime", Type: nullable, Description: "Interview time, YYYY-MM-DD HH:MM"},
			{Name: "contact_person", Type: nullable, Description: "Recruiter or contact name"},
			{Name: "additional_notes", Type: nullable, Description: "Anything else relevant, one or two sentences"},
		},
		Rules: []string{
			"Dates must use the formats shown.",
		},
	}
}

// BuildPrompt renders the extraction prompt for msg
func BuildPrompt(msg types.Message, cls types.Classification) (string, error) {
	set, err := prompts.Open(prompts.ExtractionFile)
	if err != nil {
		return "", err
	}
	intro, err := set.Render("extract-application", map[string]string{"Category": string(cls.Category)})
	if err != nil {
		return "", err
	}

	date := ""
	if !msg.Date.IsZero() {
		date = msg.Date.Format("2006-01-02 15:04")
	}
	input, err := set.Render("email-block", map[string]string{
		"Subject": msg.Subject,
		"Sender":  msg.Sender,
		"Date":    date,
		"Body":    llm.Truncate(msg.Body, MaxBodyChars),
	})
	if err != nil {
		return "", err
	}

	return llm.BuildExtractionPrompt(ApplicationUpdateSchema(intro), strings.TrimSpace(input)), nil
}
