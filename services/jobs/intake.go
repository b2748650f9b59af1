package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Manual job submissions arrive as a spreadsheet CSV export. Every
// cell is a string and the column names are the form's questions, so
// everything gets coerced here before entering the pipeline.

// CoerceTimestamp reads the spreadsheet's m/d/yyyy h:mm:ss timestamps.
func CoerceTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse("1/2/2006 15:04:05", value)
}

func CoerceText(value string) string {
	return strings.TrimSpace(value)
}

// CoerceBooleanWords reads explicit yes/no answers. Anything else,
// including truthy-looking strings, is treated as unanswered.
func CoerceBooleanWords(value string) (result, ok bool) {
	switch strings.TrimSpace(value) {
	case "yes":
		return true, true
	case "no":
		return false, true
	}
	return false, false
}

// CoerceBoolean treats any non-empty cell as true.
func CoerceBoolean(value string) bool {
	return strings.TrimSpace(value) != ""
}

// CreateID derives a stable posting id from the submission time and
// the company website's host. A link with no parseable host still
// yields an id, the submission time alone keeps it unique enough.
func CreateID(timestamp time.Time, link string) string {
	host := ""
	if parsed, err := url.Parse(link); err == nil {
		host = parsed.Host
	}
	seed := fmt.Sprintf("%s %s", timestamp.Format("2006-01-02T15:04:05"), host)
	digest := sha256.Sum224([]byte(seed))
	return hex.EncodeToString(digest[:])
}

// IntakeSubmission is one coerced row of the submissions export.
type IntakeSubmission struct {
	ID          string
	Timestamp   time.Time
	Email       string
	CompanyName string
	CompanyLink string
	JobType     string
	Title       string
	Description string
	Location    string
	IsApproved  bool
	IsSent      bool
}

// CoerceRecord coerces one row of the export, keyed by the form's
// column headers.
func CoerceRecord(record map[string]string) (IntakeSubmission, error) {
	timestamp, err := CoerceTimestamp(record["Timestamp"])
	if err != nil {
		return IntakeSubmission{}, fmt.Errorf("unable to coerce record timestamp: %w", err)
	}

	submission := IntakeSubmission{
		Timestamp:   timestamp,
		Email:       CoerceText(record["Email Address"]),
		CompanyName: CoerceText(record["Company name"]),
		CompanyLink: CoerceText(record["Company website link"]),
		JobType:     CoerceText(record["Job type"]),
		Title:       CoerceText(record["Job title"]),
		Description: CoerceText(record["Job description"]),
		Location:    CoerceText(record["Job location"]),
		IsSent:      CoerceBoolean(record["Sent"]),
	}
	if approved, ok := CoerceBooleanWords(record["Approved"]); ok {
		submission.IsApproved = approved
	}
	submission.ID = CreateID(timestamp, submission.CompanyLink)
	return submission, nil
}

// Posting converts an approved submission into a pipeline item.
func (s IntakeSubmission) Posting() Posting {
	return Posting{
		ID:           s.ID,
		Title:        s.Title,
		Link:         s.CompanyLink,
		CompanyName:  s.CompanyName,
		CompanyLink:  s.CompanyLink,
		LocationsRaw: []string{s.Location},
		EmploymentTypes: []string{
			s.JobType,
		},
		PostedAt:        s.Timestamp,
		DescriptionText: s.Description,
		Source:          "intake",
	}
}
