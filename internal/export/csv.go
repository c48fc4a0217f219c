// Package export writes applications and statistics as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/jonathan/application-tracker/internal/types"
)

const timeLayout = "2006-01-02 15:04:05"

// ApplicationHeaders is the header row of the applications file
var ApplicationHeaders = []string{
	"company_name",
	"role_title",
	"status",
	"location",
	"salary_range",
	"application_url",
	"application_date",
	"last_email_subject",
	"last_email_from",
	"last_email_date",
	"next_steps",
	"notes",
	"created_at",
	"updated_at",
}

// WriteApplications writes one row per application
func WriteApplications(w io.Writer, apps []types.ApplicationRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ApplicationHeaders); err != nil {
		return fmt.Errorf("write CSV headers: %w", err)
	}

	for _, app := range apps {
		date := ""
		if app.ApplicationDate != nil {
			date = app.ApplicationDate.Format("2006-01-02")
		}
		record := []string{
			app.CompanyName,
			app.RoleTitle,
			string(app.Status),
			deref(app.Location),
			deref(app.SalaryRange),
			deref(app.ApplicationURL),
			date,
			app.Metadata[types.MetaLastEmailSubject],
			app.Metadata[types.MetaLastEmailFrom],
			app.Metadata[types.MetaLastEmailDate],
			app.Metadata[types.MetaNextSteps],
			app.NotesText(),
			formatTime(app.CreatedAt),
			formatTime(app.UpdatedAt),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteStatistics writes counts by status followed by the ten companies with the most applications
func WriteStatistics(w io.Writer, apps []types.ApplicationRecord) error {
	writer := csv.NewWriter(w)

	statusCount := make(map[types.Status]int)
	companyCount := make(map[string]int)
	for _, app := range apps {
		statusCount[app.Status]++
		companyCount[app.CompanyName]++
	}

	rows := [][]string{
		{"status", "count"},
	}
	for _, status := range types.AllStatuses {
		if n := statusCount[status]; n > 0 {
			rows = append(rows, []string{string(status), strconv.Itoa(n)})
		}
	}
	rows = append(rows, []string{"total", strconv.Itoa(len(apps))}, []string{})

	type companyStats struct {
		name  string
		count int
	}
	companies := make([]companyStats, 0, len(companyCount))
	for name, count := range companyCount {
		companies = append(companies, companyStats{name, count})
	}
	sort.Slice(companies, func(i, j int) bool {
		if companies[i].count == companies[j].count {
			return companies[i].name < companies[j].name
		}
		return companies[i].count > companies[j].count
	})
	if len(companies) > 10 {
		companies = companies[:10]
	}

	rows = append(rows, []string{"company_name", "applications"})
	for _, c := range companies {
		rows = append(rows, []string{c.name, strconv.Itoa(c.count)})
	}

	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write statistics: %w", err)
	}
	return nil
}

// ToFiles writes the applications file and, when statsPath is non-empty, the statistics file
func ToFiles(apps []types.ApplicationRecord, path, statsPath string) error {
	if err := writeFile(path, func(w io.Writer) error { return WriteApplications(w, apps) }); err != nil {
		return err
	}
	if statsPath == "" {
		return nil
	}
	return writeFile(statsPath, func(w io.Writer) error { return WriteStatistics(w, apps) })
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close CSV file: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
