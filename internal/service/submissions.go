package service

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/notify"
	"github.com/iliyamo/linkmarket/internal/repository"
	"github.com/iliyamo/linkmarket/internal/utils"
)

type SubmissionStore interface {
	Create(ctx context.Context, s *model.SiteSubmission) error
	GetByID(ctx context.Context, id string) (*model.SiteSubmission, error)
	Update(ctx context.Context, s *model.SiteSubmission) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f repository.SubmissionFilter) ([]model.SiteSubmission, int, error)
}

// FileRemover deletes an uploaded file by its stored path.
type FileRemover interface {
	Remove(path string) error
}

type CreateSubmissionInput struct {
	UserID          *string
	Name            string
	Email           string
	Websites        []string
	IsOwner         bool
	MonthlyTraffic  string
	DomainAuthority int
	DomainRating    int
	Category        string
	Notes           string
	FilePath        string
	FileName        string
}

type SubmissionPatch struct {
	Status          *model.SubmissionStatus
	AdminNotes      *string
	Websites        []string
	MonthlyTraffic  *string
	DomainAuthority *int
	DomainRating    *int
	Category        *string
	Notes           *string
}

type SubmissionPage struct {
	Submissions []model.SiteSubmission
	Page        int
	Limit       int
	Total       int
	TotalPages  int
}

type Submissions struct {
	store  SubmissionStore
	files  FileRemover
	notify notify.Notifier
	log    *zap.Logger
	now    Clock
}

func NewSubmissions(store SubmissionStore, files FileRemover, n notify.Notifier, log *zap.Logger) *Submissions {
	return &Submissions{store: store, files: files, notify: n, log: log, now: utcNow}
}

// cleanWebsites trims entries and drops blanks and repeats.
func cleanWebsites(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, w := range in {
		w = strings.TrimSpace(w)
		key := strings.ToLower(w)
		if w == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, w)
	}
	return out
}

func (s *Submissions) CreateSubmission(ctx context.Context, in CreateSubmissionInput) (*model.SiteSubmission, error) {
	var fields []apperror.FieldError
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	websites := cleanWebsites(in.Websites)
	if name == "" {
		fields = append(fields, apperror.FieldError{Field: "name", Message: "is required"})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		fields = append(fields, apperror.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if len(websites) == 0 {
		fields = append(fields, apperror.FieldError{Field: "websites", Message: "at least one website is required"})
	}
	if in.DomainAuthority < 0 || in.DomainAuthority > 100 {
		fields = append(fields, apperror.FieldError{Field: "domainAuthority", Message: "must be between 0 and 100"})
	}
	if in.DomainRating < 0 || in.DomainRating > 100 {
		fields = append(fields, apperror.FieldError{Field: "domainRating", Message: "must be between 0 and 100"})
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields...)
	}

	now := s.now()
	sub := &model.SiteSubmission{
		ID:              utils.NewID(),
		UserID:          in.UserID,
		Name:            name,
		Email:           email,
		Websites:        websites,
		IsOwner:         in.IsOwner,
		MonthlyTraffic:  in.MonthlyTraffic,
		DomainAuthority: in.DomainAuthority,
		DomainRating:    in.DomainRating,
		Category:        in.Category,
		Notes:           in.Notes,
		FilePath:        in.FilePath,
		FileName:        in.FileName,
		Status:          model.SubmissionPending,
		SubmittedAt:     now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, storeErr(s.log, "site submission", "create", err)
	}
	s.log.Info("site submission received", zap.String("submission_id", sub.ID), zap.Int("websites", len(websites)))
	bestEffort(s.log, notify.KindSubmissionReceived, sub.ID, s.notify.SubmissionReceived(ctx, *sub))
	return sub, nil
}

func (s *Submissions) GetSubmissionByID(ctx context.Context, id string) (*model.SiteSubmission, error) {
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(s.log, "site submission", "load", err)
	}
	return sub, nil
}

func (s *Submissions) GetSubmissions(ctx context.Context, f repository.SubmissionFilter) (*SubmissionPage, error) {
	f.Page = f.Page.Normalize()
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperror.BadRequest("invalid submission status: " + string(f.Status))
	}
	subs, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, storeErr(s.log, "site submissions", "list", err)
	}
	return &SubmissionPage{
		Submissions: subs,
		Page:        f.Page.Page,
		Limit:       f.Page.Limit,
		Total:       total,
		TotalPages:  f.Page.TotalPages(total),
	}, nil
}

// UpdateSubmission applies an admin review. Moving to approved or
// rejected stamps the reviewer and notifies the submitter.
func (s *Submissions) UpdateSubmission(ctx context.Context, id string, p SubmissionPatch, reviewerID string) (*model.SiteSubmission, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, apperror.BadRequest("invalid submission status: " + string(*p.Status))
	}
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(s.log, "site submission", "load", err)
	}
	prior := sub.Status
	now := s.now()

	if p.Status != nil {
		sub.Status = *p.Status
	}
	if p.AdminNotes != nil {
		sub.AdminNotes = *p.AdminNotes
	}
	if p.Websites != nil {
		if w := cleanWebsites(p.Websites); len(w) > 0 {
			sub.Websites = w
		}
	}
	if p.MonthlyTraffic != nil {
		sub.MonthlyTraffic = *p.MonthlyTraffic
	}
	if p.DomainAuthority != nil {
		sub.DomainAuthority = *p.DomainAuthority
	}
	if p.DomainRating != nil {
		sub.DomainRating = *p.DomainRating
	}
	if p.Category != nil {
		sub.Category = *p.Category
	}
	if p.Notes != nil {
		sub.Notes = *p.Notes
	}

	reviewed := sub.Status != prior && sub.Status != model.SubmissionPending
	if reviewed {
		sub.ReviewedAt = &now
		if reviewerID != "" {
			sub.ReviewedBy = &reviewerID
		}
	}
	sub.UpdatedAt = now
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, storeErr(s.log, "site submission", "update", err)
	}

	if reviewed {
		s.log.Info("site submission reviewed", zap.String("submission_id", sub.ID),
			zap.String("status", string(sub.Status)), zap.String("reviewer", reviewerID))
		switch sub.Status {
		case model.SubmissionApproved:
			bestEffort(s.log, notify.KindSubmissionApproved, sub.ID, s.notify.SubmissionApproved(ctx, *sub))
		case model.SubmissionRejected:
			bestEffort(s.log, notify.KindSubmissionRejected, sub.ID, s.notify.SubmissionRejected(ctx, *sub))
		}
	}
	return sub, nil
}

// DeleteSubmission removes the uploaded file first. A failed file
// removal, missing file included, is logged and the record is still
// deleted.
func (s *Submissions) DeleteSubmission(ctx context.Context, id string) error {
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return storeErr(s.log, "site submission", "load", err)
	}
	if sub.FilePath != "" {
		if err := s.files.Remove(sub.FilePath); err != nil {
			s.log.Warn("submission file removal failed", zap.String("submission_id", id),
				zap.String("path", sub.FilePath), zap.Error(err))
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return storeErr(s.log, "site submission", "delete", err)
	}
	return nil
}
