package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/linkmarket/internal/model"
)

type SubmissionFilter struct {
	Status model.SubmissionStatus
	Email  string
	UserID string
	Page   Page
}

type SubmissionRepo struct{ DB *sql.DB }

func NewSubmissionRepo(db *sql.DB) *SubmissionRepo { return &SubmissionRepo{DB: db} }

const submissionColumns = "id,user_id,name,email,websites,is_owner,monthly_traffic,domain_authority,domain_rating," +
	"category,notes,file_path,file_name,status,submitted_at,reviewed_at,reviewed_by,admin_notes,updated_at"

func scanSubmission(s scanner) (*model.SiteSubmission, error) {
	var (
		sub                                       model.SiteSubmission
		websites                                  []byte
		userID, traffic, category, notes          sql.NullString
		filePath, fileName, reviewedBy, adminNote sql.NullString
		reviewedAt                                sql.NullTime
	)
	err := s.Scan(&sub.ID, &userID, &sub.Name, &sub.Email, &websites, &sub.IsOwner, &traffic, &sub.DomainAuthority,
		&sub.DomainRating, &category, &notes, &filePath, &fileName, &sub.Status, &sub.SubmittedAt, &reviewedAt,
		&reviewedBy, &adminNote, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := fromJSON(websites, &sub.Websites); err != nil {
		return nil, fmt.Errorf("decode websites: %w", err)
	}
	sub.UserID = stringPtr(userID)
	sub.MonthlyTraffic = traffic.String
	sub.Category = category.String
	sub.Notes = notes.String
	sub.FilePath = filePath.String
	sub.FileName = fileName.String
	sub.ReviewedAt = timePtr(reviewedAt)
	sub.ReviewedBy = stringPtr(reviewedBy)
	sub.AdminNotes = adminNote.String
	return &sub, nil
}

func submissionArgs(s *model.SiteSubmission) ([]any, error) {
	websites, err := toJSON(s.Websites)
	if err != nil {
		return nil, err
	}
	return []any{nullStringPtr(s.UserID), s.Name, s.Email, websites, s.IsOwner, nullString(s.MonthlyTraffic),
		s.DomainAuthority, s.DomainRating, nullString(s.Category), nullString(s.Notes), nullString(s.FilePath),
		nullString(s.FileName), s.Status, s.SubmittedAt, nullTime(s.ReviewedAt), nullStringPtr(s.ReviewedBy),
		nullString(s.AdminNotes), s.UpdatedAt}, nil
}

func (r *SubmissionRepo) Create(ctx context.Context, s *model.SiteSubmission) error {
	args, err := submissionArgs(s)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO site_submissions (id,"+submissionColumns[3:]+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		append([]any{s.ID}, args...)...)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

func (r *SubmissionRepo) GetByID(ctx context.Context, id string) (*model.SiteSubmission, error) {
	return scanSubmission(r.DB.QueryRowContext(ctx,
		"SELECT "+submissionColumns+" FROM site_submissions WHERE id=? LIMIT 1", id))
}

func (r *SubmissionRepo) Update(ctx context.Context, s *model.SiteSubmission) error {
	args, err := submissionArgs(s)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE site_submissions SET user_id=?,name=?,email=?,websites=?,is_owner=?,monthly_traffic=?,"+
			"domain_authority=?,domain_rating=?,category=?,notes=?,file_path=?,file_name=?,status=?,submitted_at=?,"+
			"reviewed_at=?,reviewed_by=?,admin_notes=?,updated_at=? WHERE id=?",
		append(args, s.ID)...)
	return err
}

func (r *SubmissionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM site_submissions WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SubmissionRepo) List(ctx context.Context, f SubmissionFilter) ([]model.SiteSubmission, int, error) {
	p := f.Page.Normalize()
	w := &where{}
	if f.Status != "" {
		w.add("status=?", f.Status)
	}
	if f.Email != "" {
		w.add("email=?", f.Email)
	}
	if f.UserID != "" {
		w.add("user_id=?", f.UserID)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM site_submissions"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+submissionColumns+" FROM site_submissions"+w.String()+" ORDER BY submitted_at DESC LIMIT ? OFFSET ?",
		append(w.args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.SiteSubmission, 0, p.Limit)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}
