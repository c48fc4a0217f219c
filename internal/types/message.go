// Package types provides type definitions for structured data used throughout the application tracker.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"time"
)

// Message is a single email fetched from a mailbox
type Message struct {
	ID      string    `json:"id"`      // Message-Id header, or folder:uidvalidity:uid when absent
	Subject string    `json:"subject"` // May be empty
	Sender  string    `json:"sender"`  // Raw From value, e.g. "Jane <jane@acme.com>"
	Date    time.Time `json:"date"`
	Body    string    `json:"body"` // Plain text; HTML parts are converted before this point
	Folder  string    `json:"folder,omitempty"`
}

// Category is the classification label assigned to a message
type Category string

// Category values produced by the classifier
const (
	CategoryApplicationConfirmation Category = "application_confirmation"
	CategoryRejection               Category = "rejection"
	CategoryInterviewRequest        Category = "interview_request"
	CategoryOffer                   Category = "offer"
	CategoryFollowUp                Category = "follow_up"
	CategoryGeneral                 Category = "general"
	CategoryNotJobRelated           Category = "not_job_related"
	CategoryError                   Category = "error"

	// CategoryUnrecognized stands in for an empty label on a job related message
	CategoryUnrecognized Category = "unrecognized"
)

// jobCategories are the categories a job-related message may carry
var jobCategories = map[Category]bool{
	CategoryApplicationConfirmation: true,
	CategoryRejection:               true,
	CategoryInterviewRequest:        true,
	CategoryOffer:                   true,
	CategoryFollowUp:                true,
	CategoryGeneral:                 true,
}

// ParseCategory normalises a raw label into a known Category.
// The second return value is false when the label is not recognised.
func ParseCategory(raw string) (Category, bool) {
	c := NormalizeCategory(raw)
	switch c {
	case CategoryNotJobRelated, CategoryError:
		return c, true
	}
	if jobCategories[c] {
		return c, true
	}
	return "", false
}

// NormalizeCategory lowercases raw and joins words with underscores
// without checking it against the known categories
func NormalizeCategory(raw string) Category {
	return Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_"))
}

// IsJobCategory reports whether c is one of the job-related categories
func (c Category) IsJobCategory() bool {
	return jobCategories[c]
}

// Classification is the classifier's verdict on a single message
type Classification struct {
	IsJobRelated bool     `json:"is_job_related"`
	Category     Category `json:"classification"`
	Confidence   float64  `json:"confidence"`
	Rationale    string   `json:"reasoning"`
}

// Failed reports whether the classification is the default produced after a classifier failure
func (c Classification) Failed() bool {
	return c.Category == CategoryError
}

// DefaultClassification is returned when the classifier could not produce a verdict
func DefaultClassification(reason string) Classification {
	return Classification{
		IsJobRelated: false,
		Category:     CategoryError,
		Confidence:   0.0,
		Rationale:    reason,
	}
}
