package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/middleware"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/repository"
	"github.com/iliyamo/linkmarket/internal/service"
)

type SubmissionService interface {
	CreateSubmission(ctx context.Context, in service.CreateSubmissionInput) (*model.SiteSubmission, error)
	GetSubmissionByID(ctx context.Context, id string) (*model.SiteSubmission, error)
	GetSubmissions(ctx context.Context, f repository.SubmissionFilter) (*service.SubmissionPage, error)
	UpdateSubmission(ctx context.Context, id string, p service.SubmissionPatch, reviewerID string) (*model.SiteSubmission, error)
	DeleteSubmission(ctx context.Context, id string) error
}

type SubmissionHandler struct {
	svc   SubmissionService
	files FileSaver
}

func NewSubmissionHandler(svc SubmissionService, files FileSaver) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, files: files}
}

type createSubmissionReq struct {
	Name            string   `json:"name" form:"name"`
	Email           string   `json:"email" form:"email"`
	Websites        []string `json:"websites" form:"websites"`
	IsOwner         bool     `json:"isOwner" form:"isOwner"`
	MonthlyTraffic  string   `json:"monthlyTraffic" form:"monthlyTraffic"`
	DomainAuthority int      `json:"domainAuthority" form:"domainAuthority"`
	DomainRating    int      `json:"domainRating" form:"domainRating"`
	Category        string   `json:"category" form:"category"`
	Notes           string   `json:"notes" form:"notes"`
}

type updateSubmissionReq struct {
	Status          *model.SubmissionStatus `json:"status"`
	AdminNotes      *string                 `json:"adminNotes"`
	Websites        []string                `json:"websites"`
	MonthlyTraffic  *string                 `json:"monthlyTraffic"`
	DomainAuthority *int                    `json:"domainAuthority"`
	DomainRating    *int                    `json:"domainRating"`
	Category        *string                 `json:"category"`
	Notes           *string                 `json:"notes"`
}

// expandList accepts repeated form fields, a JSON array in a single
// field, or one comma or newline separated value.
func expandList(in []string) []string {
	if len(in) != 1 {
		return in
	}
	v := strings.TrimSpace(in[0])
	if strings.HasPrefix(v, "[") {
		var arr []string
		if json.Unmarshal([]byte(v), &arr) == nil {
			return arr
		}
	}
	var out []string
	for _, f := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' }) {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// CreateSubmission is public. The optional csvFile part is stored and
// referenced from the record; a logged-in caller is linked as owner.
func (h *SubmissionHandler) CreateSubmission(c echo.Context) error {
	var req createSubmissionReq
	if err := bind(c, &req); err != nil {
		return err
	}
	saved, err := formFile(c, h.files, "csvFile", "submissions")
	if err != nil {
		return err
	}
	in := service.CreateSubmissionInput{
		Name:            req.Name,
		Email:           req.Email,
		Websites:        expandList(req.Websites),
		IsOwner:         req.IsOwner,
		MonthlyTraffic:  req.MonthlyTraffic,
		DomainAuthority: req.DomainAuthority,
		DomainRating:    req.DomainRating,
		Category:        req.Category,
		Notes:           req.Notes,
	}
	if uid := middleware.UserID(c); uid != "" {
		in.UserID = &uid
	}
	if saved != nil {
		in.FilePath, in.FileName = saved.Path, saved.Name
	}
	s, err := h.svc.CreateSubmission(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "submission received", s)
}

func (h *SubmissionHandler) ListSubmissions(c echo.Context) error {
	page, err := h.svc.GetSubmissions(c.Request().Context(), repository.SubmissionFilter{
		Status: model.SubmissionStatus(c.QueryParam("status")),
		Email:  c.QueryParam("email"),
		UserID: c.QueryParam("userId"),
		Page:   pageParams(c),
	})
	if err != nil {
		return err
	}
	return respondPage(c, "", page.Submissions, Pagination{
		Page: page.Page, Limit: page.Limit, Total: page.Total, TotalPages: page.TotalPages,
	})
}

func (h *SubmissionHandler) GetSubmission(c echo.Context) error {
	s, err := h.svc.GetSubmissionByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", s)
}

// UpdateSubmission records the admin as reviewer on status changes.
func (h *SubmissionHandler) UpdateSubmission(c echo.Context) error {
	var req updateSubmissionReq
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.svc.UpdateSubmission(c.Request().Context(), c.Param("id"), service.SubmissionPatch{
		Status:          req.Status,
		AdminNotes:      req.AdminNotes,
		Websites:        req.Websites,
		MonthlyTraffic:  req.MonthlyTraffic,
		DomainAuthority: req.DomainAuthority,
		DomainRating:    req.DomainRating,
		Category:        req.Category,
		Notes:           req.Notes,
	}, middleware.UserID(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "submission updated", s)
}

func (h *SubmissionHandler) DeleteSubmission(c echo.Context) error {
	if err := h.svc.DeleteSubmission(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "submission deleted", nil)
}
