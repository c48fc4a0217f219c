package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/application-tracker/internal/types"
)

func strPtr(s string) *string { return &s }

func sampleApps() []types.ApplicationRecord {
	applied := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 2, 12, 15, 4, 5, 0, time.UTC)
	return []types.ApplicationRecord{
		{
			CompanyName:     "Acme",
			RoleTitle:       "Engineer",
			Status:          types.StatusInterviewScheduled,
			Location:        strPtr("Remote"),
			ApplicationDate: &applied,
			Notes: []types.Note{
				{At: applied, Category: types.CategoryApplicationConfirmation, Text: "Thanks for applying"},
				{At: updated, Category: types.CategoryInterviewRequest, Text: "Let's talk, \"Tuesday\""},
			},
			Metadata: map[string]string{
				types.MetaLastEmailSubject: "Interview, next week",
				types.MetaNextSteps:        "Pick a slot",
			},
			CreatedAt: applied,
			UpdatedAt: updated,
		},
		{CompanyName: "Globex", RoleTitle: "SRE", Status: types.StatusRejected},
		{CompanyName: "Acme", RoleTitle: "Manager", Status: types.StatusApplied},
	}
}

func TestWriteApplications(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteApplications(&buf, sampleApps()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, ApplicationHeaders, rows[0])

	first := rows[1]
	assert.Equal(t, "Acme", first[0])
	assert.Equal(t, "interview_scheduled", first[2])
	assert.Equal(t, "Remote", first[3])
	assert.Equal(t, "", first[4])
	assert.Equal(t, "2026-02-10", first[6])
	assert.Equal(t, "Interview, next week", first[7])
	assert.Equal(t, "Pick a slot", first[10])
	assert.Contains(t, first[11], "interview_request: Let's talk, \"Tuesday\"")
	assert.Contains(t, first[11], "\n")
	assert.Equal(t, "2026-02-12 15:04:05", first[13])

	assert.Equal(t, "", rows[2][6])
	assert.Equal(t, "", rows[2][12])
}

func TestWriteStatistics(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStatistics(&buf, sampleApps()))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"status", "count"}, rows[0])
	assert.Equal(t, []string{"applied", "1"}, rows[1])
	assert.Equal(t, []string{"interview_scheduled", "1"}, rows[2])
	assert.Equal(t, []string{"rejected", "1"}, rows[3])
	assert.Equal(t, []string{"total", "3"}, rows[4])
	assert.Equal(t, []string{"company_name", "applications"}, rows[5])
	assert.Equal(t, []string{"Acme", "2"}, rows[6])
	assert.Equal(t, []string{"Globex", "1"}, rows[7])
}

func TestToFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "applications.csv")
	statsPath := filepath.Join(dir, "statistics.csv")

	require.NoError(t, ToFiles(sampleApps(), path, statsPath))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "company_name,role_title,status")

	data, err = os.ReadFile(statsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "total,3")
}

func TestToFiles_SkipsStatsAndReportsErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "applications.csv")

	require.NoError(t, ToFiles(nil, path, ""))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "company_name,role_title,status,location,salary_range,application_url,application_date,last_email_subject,last_email_from,last_email_date,next_steps,notes,created_at,updated_at\n", string(data))

	err = ToFiles(nil, filepath.Join(dir, "missing", "out.csv"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create CSV file")
}
