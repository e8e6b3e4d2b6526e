package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/licensed/internal/domain/license"
	"github.com/Strob0t/licensed/internal/port/database"
)

// LedgerByKey runs fn in a transaction holding a row lock on the license
// with the given key. Concurrent ledger calls for the same license queue on
// the lock; calls for other licenses do not contend.
func (s *Store) LedgerByKey(ctx context.Context, key string, fn func(database.LedgerTx) error) error {
	return s.ledger(ctx, fn, "lock license by key",
		`SELECT `+licenseColumns+` FROM licenses WHERE key = $1 FOR UPDATE`, key)
}

// LedgerByID is LedgerByKey addressed by license id.
func (s *Store) LedgerByID(ctx context.Context, licenseID int64, fn func(database.LedgerTx) error) error {
	return s.ledger(ctx, fn, fmt.Sprintf("lock license %d", licenseID),
		`SELECT `+licenseColumns+` FROM licenses WHERE id = $1 FOR UPDATE`, licenseID)
}

func (s *Store) ledger(ctx context.Context, fn func(database.LedgerTx) error, what, lockQuery string, arg any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	l, err := scanLicense(tx.QueryRow(ctx, lockQuery, arg))
	if err != nil {
		return notFoundWrap(err, "%s", what)
	}

	if err := fn(&ledgerTx{tx: tx, lic: &l}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	return nil
}

// ledgerTx implements database.LedgerTx on top of a pgx.Tx.
type ledgerTx struct {
	tx  pgx.Tx
	lic *license.License
}

func (t *ledgerTx) License() *license.License { return t.lic }

func (t *ledgerTx) FindActivation(ctx context.Context, machineID string) (*license.Activation, error) {
	a, err := scanActivation(t.tx.QueryRow(ctx,
		`SELECT `+activationColumns+` FROM activations WHERE license_id = $1 AND machine_id = $2`,
		t.lic.ID, machineID))
	if err != nil {
		return nil, notFoundWrap(err, "find activation")
	}
	return &a, nil
}

func (t *ledgerTx) GetActivation(ctx context.Context, id int64) (*license.Activation, error) {
	a, err := scanActivation(t.tx.QueryRow(ctx,
		`SELECT `+activationColumns+` FROM activations WHERE id = $1 AND license_id = $2`,
		id, t.lic.ID))
	if err != nil {
		return nil, notFoundWrap(err, "get activation %d", id)
	}
	return &a, nil
}

func (t *ledgerTx) InsertActivation(ctx context.Context, machineID, friendlyName string) (*license.Activation, error) {
	a, err := scanActivation(t.tx.QueryRow(ctx,
		`INSERT INTO activations (license_id, machine_id, friendly_name)
		 VALUES ($1, $2, $3)
		 RETURNING `+activationColumns,
		t.lic.ID, machineID, nullIfEmpty(friendlyName)))
	if err != nil {
		return nil, fmt.Errorf("insert activation: %w", constraintWrap(err, "machine already activated"))
	}
	return &a, nil
}

func (t *ledgerTx) DeleteActivation(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM activations WHERE id = $1 AND license_id = $2`, id, t.lic.ID)
	return execExpectOne(tag, err, "delete activation %d", id)
}

func (t *ledgerTx) CountActivations(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx,
		`SELECT count(*) FROM activations WHERE license_id = $1`, t.lic.ID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count activations: %w", err)
	}
	return n, nil
}

// SetActiveSeats writes the counter. A value outside [0, max_seats] trips the
// table's check constraints and yields domain.ErrSeatsExhausted.
func (t *ledgerTx) SetActiveSeats(ctx context.Context, n int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE licenses SET active_seats = $2 WHERE id = $1`, t.lic.ID, n)
	if err := execExpectOne(tag, constraintWrap(err, "set active seats"), "set active seats on license %d", t.lic.ID); err != nil {
		return err
	}
	t.lic.ActiveSeats = n
	return nil
}
