package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/linkmarket/internal/model"
)

// CatalogRepo stores services and their price packages.
type CatalogRepo struct{ DB *sql.DB }

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{DB: db} }

const serviceColumns = "id,title,description,icon,sort_order,created_at,updated_at"

func scanService(s scanner) (*model.Service, error) {
	var (
		svc  model.Service
		icon sql.NullString
	)
	if err := s.Scan(&svc.ID, &svc.Title, &svc.Description, &icon, &svc.Order, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	svc.Icon = icon.String
	return &svc, nil
}

func (r *CatalogRepo) CreateService(ctx context.Context, s *model.Service) error {
	_, err := r.DB.ExecContext(ctx, "INSERT INTO services ("+serviceColumns+") VALUES (?,?,?,?,?,?,?)",
		s.ID, s.Title, s.Description, nullString(s.Icon), s.Order, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *CatalogRepo) GetService(ctx context.Context, id string) (*model.Service, error) {
	return scanService(r.DB.QueryRowContext(ctx, "SELECT "+serviceColumns+" FROM services WHERE id=? LIMIT 1", id))
}

func (r *CatalogRepo) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+serviceColumns+" FROM services ORDER BY sort_order, created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) UpdateService(ctx context.Context, s *model.Service) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE services SET title=?, description=?, icon=?, sort_order=?, updated_at=? WHERE id=?",
		s.Title, s.Description, nullString(s.Icon), s.Order, s.UpdatedAt, s.ID)
	return err
}

func (r *CatalogRepo) DeleteService(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "services", id)
}

const packageColumns = "id,service_id,name,price,features,popular,sort_order,created_at,updated_at"

func scanPackage(s scanner) (*model.ServicePackage, error) {
	var (
		p        model.ServicePackage
		features []byte
	)
	if err := s.Scan(&p.ID, &p.ServiceID, &p.Name, &p.Price, &features, &p.Popular, &p.Order, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := fromJSON(features, &p.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	return &p, nil
}

func (r *CatalogRepo) CreatePackage(ctx context.Context, p *model.ServicePackage) error {
	features, err := toJSON(p.Features)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, "INSERT INTO service_packages ("+packageColumns+") VALUES (?,?,?,?,?,?,?,?,?)",
		p.ID, p.ServiceID, p.Name, p.Price, features, p.Popular, p.Order, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *CatalogRepo) GetPackage(ctx context.Context, id string) (*model.ServicePackage, error) {
	return scanPackage(r.DB.QueryRowContext(ctx, "SELECT "+packageColumns+" FROM service_packages WHERE id=? LIMIT 1", id))
}

// ListPackages lists every package, or those of one service when
// serviceID is set.
func (r *CatalogRepo) ListPackages(ctx context.Context, serviceID string) ([]model.ServicePackage, error) {
	w := &where{}
	if serviceID != "" {
		w.add("service_id=?", serviceID)
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+packageColumns+" FROM service_packages"+w.String()+" ORDER BY sort_order, price", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ServicePackage
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) UpdatePackage(ctx context.Context, p *model.ServicePackage) error {
	features, err := toJSON(p.Features)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE service_packages SET service_id=?, name=?, price=?, features=?, popular=?, sort_order=?, updated_at=? WHERE id=?",
		p.ServiceID, p.Name, p.Price, features, p.Popular, p.Order, p.UpdatedAt, p.ID)
	return err
}

func (r *CatalogRepo) DeletePackage(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "service_packages", id)
}

func (r *CatalogRepo) deleteByID(ctx context.Context, table, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM "+table+" WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
