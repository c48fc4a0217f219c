package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/application-tracker/internal/llm"
	"github.com/jonathan/application-tracker/internal/types"
)

type fakeClient struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return f.GenerateJSON(ctx, prompt, tier)
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func (f *fakeClient) GetModel(llm.ModelTier) string { return "fake" }

func (f *fakeClient) Close() error { return nil }

func interviewMessage() types.Message {
	return types.Message{
		ID:      "m1",
		Subject: "Interview for Backend Engineer",
		Sender:  "Jane <jane@acme.io>",
		Date:    time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		Body:    "Please choose a time for your interview.",
	}
}

func TestExtract_Success(t *testing.T) {
	client := &fakeClient{response: `{
		"company_name": "Acme",
		"role_title": "Backend Engineer",
		"location": "Remote",
		"status": "Interview Scheduled",
		"application_date": null,
		"salary_range": "N/A",
		"application_url": "https://jobs.acme.io/123",
		"next_steps": "Pick a slot",
		"interview_datetime": "2024-03-08 14:00",
		"contact_person": "Jane",
		"additional_notes": "Video call"
	}`}
	e := New(client)

	rec := e.Extract(context.Background(), interviewMessage(), types.Classification{IsJobRelated: true, Category: types.CategoryInterviewRequest})

	assert.False(t, rec.Fallback)
	assert.Equal(t, "Acme", rec.CompanyName)
	assert.Equal(t, "Backend Engineer", rec.RoleTitle)
	assert.Equal(t, "Remote", rec.Location)
	assert.Equal(t, types.StatusInterviewScheduled, rec.Status)
	assert.Empty(t, rec.ApplicationDate)
	assert.Empty(t, rec.SalaryRange, "placeholder text is treated as absent")
	assert.Equal(t, "https://jobs.acme.io/123", rec.ApplicationURL)
	assert.Equal(t, "Pick a slot", rec.NextSteps)
	assert.Equal(t, "2024-03-08 14:00", rec.InterviewDateTime)
	assert.Equal(t, "Jane", rec.ContactPerson)
	assert.Equal(t, "Video call", rec.Notes)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "classified as interview_request")
	assert.Contains(t, client.prompts[0], "Subject: Interview for Backend Engineer")
	assert.Contains(t, client.prompts[0], "Date: 2024-03-04 10:00")
	assert.Contains(t, client.prompts[0], `"status": "applied" |`)
}

func TestExtract_UnrecognisedStatusUsesCategoryMapping(t *testing.T) {
	client := &fakeClient{response: `{"company_name": "Acme", "role_title": "Analyst", "status": "ghosted"}`}
	rec := New(client).Extract(context.Background(), interviewMessage(), types.Classification{Category: types.CategoryRejection})

	assert.False(t, rec.Fallback)
	assert.Equal(t, types.StatusRejected, rec.Status)
}

func TestExtract_UnrecognisedCategoryFallsBackToUnknown(t *testing.T) {
	cls := types.Classification{IsJobRelated: true, Category: types.Category("application_received")}

	rec := New(&fakeClient{err: errors.New("down")}).Extract(context.Background(), interviewMessage(), cls)
	assert.True(t, rec.Fallback)
	assert.Equal(t, types.StatusUnknown, rec.Status)

	client := &fakeClient{response: `{"company_name": "Acme", "role_title": "Analyst", "status": null}`}
	rec = New(client).Extract(context.Background(), interviewMessage(), cls)
	assert.True(t, rec.Fallback, "null status fails the schema")
	assert.Equal(t, types.StatusUnknown, rec.Status)
}

func TestExtract_InvalidURLDropped(t *testing.T) {
	client := &fakeClient{response: `{"company_name": "Acme", "role_title": "Analyst", "status": "applied", "application_url": "see portal"}`}
	rec := New(client).Extract(context.Background(), interviewMessage(), types.Classification{Category: types.CategoryApplicationConfirmation})

	assert.Empty(t, rec.ApplicationURL)
}

func TestExtract_TruncatesBody(t *testing.T) {
	client := &fakeClient{response: `{"status": "applied"}`}
	msg := interviewMessage()
	msg.Body = strings.Repeat("x", MaxBodyChars) + "TAILMARKER"

	New(client).Extract(context.Background(), msg, types.Classification{Category: types.CategoryGeneral})

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], strings.Repeat("x", MaxBodyChars)+"...")
	assert.NotContains(t, client.prompts[0], "TAILMARKER")
}

// Fallback safety: whatever the model does, a record comes back with a status from the mapping table
func TestExtract_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		client llm.Client
	}{
		{"transport error", &fakeClient{err: errors.New("quota exceeded")}},
		{"garbage", &fakeClient{response: "I am not sure"}},
		{"missing status", &fakeClient{response: `{"company_name": "Acme"}`}},
		{"nil client", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e *Extractor
			if tt.client == nil {
				e = New(nil)
			} else {
				e = New(tt.client)
			}

			rec := e.Extract(context.Background(), interviewMessage(), types.Classification{Category: types.CategoryInterviewRequest})

			assert.True(t, rec.Fallback)
			assert.Equal(t, "Acme", rec.CompanyName)
			assert.Equal(t, "Backend Engineer", rec.RoleTitle)
			assert.Equal(t, types.StatusInterviewScheduled, rec.Status)
			assert.True(t, strings.HasPrefix(rec.Notes, "Extraction error: "))
		})
	}
}

type fixedHeuristics struct{}

func (fixedHeuristics) Company(types.Message) string { return "Fixed Co" }
func (fixedHeuristics) Role(types.Message) string    { return "Fixed Role" }

func TestExtract_CustomHeuristics(t *testing.T) {
	e := New(&fakeClient{err: errors.New("down")}, WithHeuristics(fixedHeuristics{}))
	rec := e.Extract(context.Background(), interviewMessage(), types.Classification{Category: types.CategoryOffer})

	assert.Equal(t, "Fixed Co", rec.CompanyName)
	assert.Equal(t, "Fixed Role", rec.RoleTitle)
	assert.Equal(t, types.StatusOfferReceived, rec.Status)
}

// Scenario E: extraction failure on an ambiguous subject leaves the role empty
func TestExtract_FallbackWithoutRole(t *testing.T) {
	msg := types.Message{ID: "m2", Subject: "Quick question", Sender: "hr@initech.com"}
	rec := New(&fakeClient{err: errors.New("down")}).Extract(context.Background(), msg, types.Classification{Category: types.CategoryFollowUp})

	assert.Equal(t, "Initech", rec.CompanyName)
	assert.Empty(t, rec.RoleTitle)
	assert.False(t, rec.Complete())
	assert.Equal(t, types.StatusFollowUpNeeded, rec.Status)
}

func TestExtractBatch(t *testing.T) {
	client := &fakeClient{response: `{"company_name": "Acme", "role_title": "Analyst", "status": "applied"}`}
	msgs := []types.Message{interviewMessage(), interviewMessage()}
	out := New(client).ExtractBatch(context.Background(), msgs, []types.Classification{{Category: types.CategoryGeneral}})

	require.Len(t, out, 2)
	assert.Equal(t, "Acme", out[1].CompanyName)
}

func TestValue(t *testing.T) {
	s := func(v string) *string { return &v }
	assert.Equal(t, "", value(nil))
	assert.Equal(t, "", value(s(" null ")))
	assert.Equal(t, "", value(s("Unknown")))
	assert.Equal(t, "Berlin", value(s(" Berlin ")))
}
