package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/service"
)

type CatalogService interface {
	CreateService(ctx context.Context, in service.ServiceInput) (*model.Service, error)
	GetService(ctx context.Context, id string) (*model.Service, error)
	ListServices(ctx context.Context) ([]model.Service, error)
	UpdateService(ctx context.Context, id string, in service.ServiceInput) (*model.Service, error)
	DeleteService(ctx context.Context, id string) error
	CreatePackage(ctx context.Context, in service.PackageInput) (*model.ServicePackage, error)
	GetPackage(ctx context.Context, id string) (*model.ServicePackage, error)
	ListPackages(ctx context.Context, serviceID string) ([]model.ServicePackage, error)
	UpdatePackage(ctx context.Context, id string, in service.PackageInput) (*model.ServicePackage, error)
	DeletePackage(ctx context.Context, id string) error
}

// CatalogHandler serves the storefront. Reads are public, writes are
// admin only.
type CatalogHandler struct {
	svc CatalogService
}

func NewCatalogHandler(svc CatalogService) *CatalogHandler { return &CatalogHandler{svc: svc} }

type serviceReq struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	Icon        *string `json:"icon" validate:"omitempty,max=100"`
	Order       *int    `json:"order"`
}

func (r serviceReq) input() service.ServiceInput {
	return service.ServiceInput{Title: r.Title, Description: r.Description, Icon: r.Icon, Order: r.Order}
}

type packageReq struct {
	ServiceID *string  `json:"serviceId"`
	Name      *string  `json:"name" validate:"omitempty,max=200"`
	Price     *float64 `json:"price"`
	Features  []string `json:"features"`
	Popular   *bool    `json:"popular"`
	Order     *int     `json:"order"`
}

func (r packageReq) input() service.PackageInput {
	return service.PackageInput{
		ServiceID: r.ServiceID, Name: r.Name, Price: r.Price,
		Features: r.Features, Popular: r.Popular, Order: r.Order,
	}
}

func (h *CatalogHandler) ListServices(c echo.Context) error {
	list, err := h.svc.ListServices(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", list)
}

func (h *CatalogHandler) GetService(c echo.Context) error {
	s, err := h.svc.GetService(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", s)
}

func (h *CatalogHandler) CreateService(c echo.Context) error {
	var req serviceReq
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.svc.CreateService(c.Request().Context(), req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "service created", s)
}

func (h *CatalogHandler) UpdateService(c echo.Context) error {
	var req serviceReq
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.svc.UpdateService(c.Request().Context(), c.Param("id"), req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "service updated", s)
}

func (h *CatalogHandler) DeleteService(c echo.Context) error {
	if err := h.svc.DeleteService(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "service deleted", nil)
}

// ListPackages lists every package, or those of ?serviceId=.
func (h *CatalogHandler) ListPackages(c echo.Context) error {
	serviceID := c.QueryParam("serviceId")
	if id := c.Param("id"); id != "" {
		serviceID = id
	}
	list, err := h.svc.ListPackages(c.Request().Context(), serviceID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", list)
}

func (h *CatalogHandler) GetPackage(c echo.Context) error {
	p, err := h.svc.GetPackage(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", p)
}

func (h *CatalogHandler) CreatePackage(c echo.Context) error {
	var req packageReq
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.CreatePackage(c.Request().Context(), req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "package created", p)
}

func (h *CatalogHandler) UpdatePackage(c echo.Context) error {
	var req packageReq
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.UpdatePackage(c.Request().Context(), c.Param("id"), req.input())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "package updated", p)
}

func (h *CatalogHandler) DeletePackage(c echo.Context) error {
	if err := h.svc.DeletePackage(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "package deleted", nil)
}
