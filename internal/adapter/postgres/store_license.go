package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/licensed/internal/domain/license"
)

const licenseColumns = `id, key, customer_id, product_id, is_active, expiration_date, max_seats, active_seats, created_at`

func scanLicense(row scannable) (license.License, error) {
	var l license.License
	err := row.Scan(&l.ID, &l.Key, &l.CustomerID, &l.ProductID, &l.IsActive,
		&l.ExpirationDate, &l.MaxSeats, &l.ActiveSeats, &l.CreatedAt)
	return l, err
}

const activationColumns = `id, license_id, machine_id, friendly_name, activated_at`

func scanActivation(row scannable) (license.Activation, error) {
	var a license.Activation
	var friendly *string
	if err := row.Scan(&a.ID, &a.LicenseID, &a.MachineID, &friendly, &a.ActivatedAt); err != nil {
		return a, err
	}
	if friendly != nil {
		a.FriendlyName = *friendly
	}
	return a, nil
}

// CreateLicense inserts l with zero active seats. A duplicate key yields
// domain.ErrConflict; an unknown customer or product yields domain.ErrNotFound.
func (s *Store) CreateLicense(ctx context.Context, l *license.License) (*license.License, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO licenses (key, customer_id, product_id, is_active, expiration_date, max_seats, active_seats)
		 VALUES ($1, $2, $3, $4, $5, $6, 0)
		 RETURNING `+licenseColumns,
		l.Key, l.CustomerID, l.ProductID, l.IsActive, l.ExpirationDate, l.MaxSeats)

	created, err := scanLicense(row)
	if err != nil {
		return nil, fmt.Errorf("create license: %w", constraintWrap(err, "license key already exists"))
	}
	created.Activations = []license.Activation{}
	return &created, nil
}

func (s *Store) GetLicense(ctx context.Context, id int64) (*license.License, error) {
	l, err := scanLicense(s.pool.QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get license %d", id)
	}
	return &l, nil
}

func (s *Store) GetLicenseByKey(ctx context.Context, key string) (*license.License, error) {
	l, err := scanLicense(s.pool.QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE key = $1`, key))
	if err != nil {
		return nil, notFoundWrap(err, "get license by key")
	}
	return &l, nil
}

func (s *Store) ListLicensesByCustomer(ctx context.Context, customerID int64) ([]license.License, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE customer_id = $1 ORDER BY id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []license.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		licenses = append(licenses, l)
	}
	return orEmpty(licenses), rows.Err()
}

func (s *Store) ListLicenseIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM licenses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list license ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan license id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetLicenseStatus flips is_active. It never touches active_seats.
func (s *Store) SetLicenseStatus(ctx context.Context, id int64, active bool) (*license.License, error) {
	l, err := scanLicense(s.pool.QueryRow(ctx,
		`UPDATE licenses SET is_active = $2 WHERE id = $1 RETURNING `+licenseColumns, id, active))
	if err != nil {
		return nil, notFoundWrap(err, "set license %d status", id)
	}
	return &l, nil
}

func (s *Store) ListActivations(ctx context.Context, licenseID int64) ([]license.Activation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+activationColumns+` FROM activations WHERE license_id = $1 ORDER BY id`, licenseID)
	if err != nil {
		return nil, fmt.Errorf("list activations: %w", err)
	}
	defer rows.Close()

	var out []license.Activation
	for rows.Next() {
		a, err := scanActivation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		out = append(out, a)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) ActivationLicenseID(ctx context.Context, activationID int64) (int64, error) {
	var licenseID int64
	err := s.pool.QueryRow(ctx, `SELECT license_id FROM activations WHERE id = $1`, activationID).Scan(&licenseID)
	if err != nil {
		return 0, notFoundWrap(err, "get activation %d", activationID)
	}
	return licenseID, nil
}
