package model

import "time"

// SubmissionStatus is the review state of a site submission.
// Both approved and rejected are terminal.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionApproved, SubmissionRejected:
		return true
	}
	return false
}

// SiteSubmission is a publisher's request to list websites.
// FilePath references an uploaded file on disk relative to the
// upload root; the content itself is never stored in the database.
type SiteSubmission struct {
	ID              string           `json:"id"`
	UserID          *string          `json:"userId,omitempty"`
	Name            string           `json:"name"`
	Email           string           `json:"email"`
	Websites        []string         `json:"websites"`
	IsOwner         bool             `json:"isOwner"`
	MonthlyTraffic  string           `json:"monthlyTraffic,omitempty"`
	DomainAuthority int              `json:"domainAuthority,omitempty"`
	DomainRating    int              `json:"domainRating,omitempty"`
	Category        string           `json:"category,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	FilePath        string           `json:"filePath,omitempty"`
	FileName        string           `json:"fileName,omitempty"`
	Status          SubmissionStatus `json:"status"`
	SubmittedAt     time.Time        `json:"submittedAt"`
	ReviewedAt      *time.Time       `json:"reviewedAt,omitempty"`
	ReviewedBy      *string          `json:"reviewedBy,omitempty"`
	AdminNotes      string           `json:"adminNotes,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}
