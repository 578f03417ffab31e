package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/utils"
)

type CatalogStore interface {
	CreateService(ctx context.Context, s *model.Service) error
	GetService(ctx context.Context, id string) (*model.Service, error)
	ListServices(ctx context.Context) ([]model.Service, error)
	UpdateService(ctx context.Context, s *model.Service) error
	DeleteService(ctx context.Context, id string) error
	CreatePackage(ctx context.Context, p *model.ServicePackage) error
	GetPackage(ctx context.Context, id string) (*model.ServicePackage, error)
	ListPackages(ctx context.Context, serviceID string) ([]model.ServicePackage, error)
	UpdatePackage(ctx context.Context, p *model.ServicePackage) error
	DeletePackage(ctx context.Context, id string) error
}

type ServiceInput struct {
	Title       *string
	Description *string
	Icon        *string
	Order       *int
}

type PackageInput struct {
	ServiceID *string
	Name      *string
	Price     *float64
	Features  []string
	Popular   *bool
	Order     *int
}

// Catalog manages the storefront's services and their price tiers.
type Catalog struct {
	store CatalogStore
	log   *zap.Logger
	now   Clock
}

func NewCatalog(store CatalogStore, log *zap.Logger) *Catalog {
	return &Catalog{store: store, log: log, now: utcNow}
}

func (in ServiceInput) apply(s *model.Service) {
	if in.Title != nil {
		s.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		s.Description = *in.Description
	}
	if in.Icon != nil {
		s.Icon = *in.Icon
	}
	if in.Order != nil {
		s.Order = *in.Order
	}
}

func (c *Catalog) CreateService(ctx context.Context, in ServiceInput) (*model.Service, error) {
	now := c.now()
	s := &model.Service{ID: utils.NewID(), CreatedAt: now, UpdatedAt: now}
	in.apply(s)
	if s.Title == "" {
		return nil, apperror.Validation(apperror.FieldError{Field: "title", Message: "is required"})
	}
	if err := c.store.CreateService(ctx, s); err != nil {
		return nil, storeErr(c.log, "service", "create", err)
	}
	return s, nil
}

func (c *Catalog) GetService(ctx context.Context, id string) (*model.Service, error) {
	s, err := c.store.GetService(ctx, id)
	if err != nil {
		return nil, storeErr(c.log, "service", "load", err)
	}
	return s, nil
}

func (c *Catalog) ListServices(ctx context.Context) ([]model.Service, error) {
	list, err := c.store.ListServices(ctx)
	if err != nil {
		return nil, storeErr(c.log, "services", "list", err)
	}
	if list == nil {
		list = []model.Service{}
	}
	return list, nil
}

func (c *Catalog) UpdateService(ctx context.Context, id string, in ServiceInput) (*model.Service, error) {
	s, err := c.store.GetService(ctx, id)
	if err != nil {
		return nil, storeErr(c.log, "service", "load", err)
	}
	in.apply(s)
	if s.Title == "" {
		return nil, apperror.Validation(apperror.FieldError{Field: "title", Message: "must not be empty"})
	}
	s.UpdatedAt = c.now()
	if err := c.store.UpdateService(ctx, s); err != nil {
		return nil, storeErr(c.log, "service", "update", err)
	}
	return s, nil
}

func (c *Catalog) DeleteService(ctx context.Context, id string) error {
	if err := c.store.DeleteService(ctx, id); err != nil {
		return storeErr(c.log, "service", "delete", err)
	}
	return nil
}

func (in PackageInput) apply(p *model.ServicePackage) {
	if in.ServiceID != nil {
		p.ServiceID = *in.ServiceID
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Features != nil {
		p.Features = in.Features
	}
	if in.Popular != nil {
		p.Popular = *in.Popular
	}
	if in.Order != nil {
		p.Order = *in.Order
	}
}

func validatePackage(p *model.ServicePackage) error {
	var fields []apperror.FieldError
	if p.ServiceID == "" {
		fields = append(fields, apperror.FieldError{Field: "serviceId", Message: "is required"})
	}
	if p.Name == "" {
		fields = append(fields, apperror.FieldError{Field: "name", Message: "is required"})
	}
	if p.Price <= 0 {
		fields = append(fields, apperror.FieldError{Field: "price", Message: "must be greater than 0"})
	}
	if len(fields) > 0 {
		return apperror.Validation(fields...)
	}
	return nil
}

func (c *Catalog) CreatePackage(ctx context.Context, in PackageInput) (*model.ServicePackage, error) {
	now := c.now()
	p := &model.ServicePackage{ID: utils.NewID(), Features: []string{}, CreatedAt: now, UpdatedAt: now}
	in.apply(p)
	if err := validatePackage(p); err != nil {
		return nil, err
	}
	if _, err := c.store.GetService(ctx, p.ServiceID); err != nil {
		return nil, storeErr(c.log, "service", "load", err)
	}
	if err := c.store.CreatePackage(ctx, p); err != nil {
		return nil, storeErr(c.log, "service package", "create", err)
	}
	return p, nil
}

func (c *Catalog) GetPackage(ctx context.Context, id string) (*model.ServicePackage, error) {
	p, err := c.store.GetPackage(ctx, id)
	if err != nil {
		return nil, storeErr(c.log, "service package", "load", err)
	}
	return p, nil
}

// ListPackages returns every package, or only those of serviceID.
func (c *Catalog) ListPackages(ctx context.Context, serviceID string) ([]model.ServicePackage, error) {
	list, err := c.store.ListPackages(ctx, serviceID)
	if err != nil {
		return nil, storeErr(c.log, "service packages", "list", err)
	}
	if list == nil {
		list = []model.ServicePackage{}
	}
	return list, nil
}

func (c *Catalog) UpdatePackage(ctx context.Context, id string, in PackageInput) (*model.ServicePackage, error) {
	p, err := c.store.GetPackage(ctx, id)
	if err != nil {
		return nil, storeErr(c.log, "service package", "load", err)
	}
	prevService := p.ServiceID
	in.apply(p)
	if err := validatePackage(p); err != nil {
		return nil, err
	}
	if p.ServiceID != prevService {
		if _, err := c.store.GetService(ctx, p.ServiceID); err != nil {
			return nil, storeErr(c.log, "service", "load", err)
		}
	}
	p.UpdatedAt = c.now()
	if err := c.store.UpdatePackage(ctx, p); err != nil {
		return nil, storeErr(c.log, "service package", "update", err)
	}
	return p, nil
}

func (c *Catalog) DeletePackage(ctx context.Context, id string) error {
	if err := c.store.DeletePackage(ctx, id); err != nil {
		return storeErr(c.log, "service package", "delete", err)
	}
	return nil
}
