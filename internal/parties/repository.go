package parties

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MedGhazal/InvoiceGenerator/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for party profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateInvoicer inserts a company profile with its legal info.
func (r *Repository) CreateInvoicer(ctx context.Context, inv *Invoicer) (*Invoicer, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO invoicers (manager_id, name, address, country, phone, logo_path, book_keeping_currency, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, query,
			inv.ManagerID, inv.Name, inv.Address, inv.Country, inv.Phone, inv.LogoPath, inv.BookKeepingCurrency,
		).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
		if err != nil {
			return fmt.Errorf("parties: insert invoicer: %w", err)
		}
		if inv.Legal != nil {
			return upsertLegal(ctx, tx, inv.ID, *inv.Legal)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func upsertLegal(ctx context.Context, tx pgx.Tx, invoicerID int64, l LegalInfo) error {
	query := `
		INSERT INTO legal_information (invoicer_id, ice, rc, patente, cnss, fiscal)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (invoicer_id) DO UPDATE SET
			ice = EXCLUDED.ice, rc = EXCLUDED.rc, patente = EXCLUDED.patente,
			cnss = EXCLUDED.cnss, fiscal = EXCLUDED.fiscal`
	if _, err := tx.Exec(ctx, query, invoicerID, l.ICE, l.RC, l.Patente, l.CNSS, l.Fiscal); err != nil {
		return fmt.Errorf("parties: upsert legal info: %w", err)
	}
	return nil
}

const invoicerColumns = `
	i.id, i.manager_id, i.name, i.address, i.country, i.phone, i.logo_path,
	i.book_keeping_currency, i.created_at, i.updated_at,
	l.ice, l.rc, l.patente, l.cnss, l.fiscal`

const invoicerFrom = `
	FROM invoicers i
	LEFT JOIN legal_information l ON l.invoicer_id = i.id`

// GetInvoicer retrieves an invoicer with its legal info.
func (r *Repository) GetInvoicer(ctx context.Context, id int64) (*Invoicer, error) {
	inv, err := scanInvoicer(r.pool.QueryRow(ctx, `SELECT `+invoicerColumns+invoicerFrom+` WHERE i.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("parties: get invoicer: %w", err)
	}
	return inv, nil
}

// UpdateInvoicer persists profile and legal info changes.
func (r *Repository) UpdateInvoicer(ctx context.Context, inv *Invoicer) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			UPDATE invoicers SET name = $2, address = $3, country = $4, phone = $5,
				logo_path = $6, book_keeping_currency = $7, updated_at = NOW()
			WHERE id = $1`
		tag, err := tx.Exec(ctx, query,
			inv.ID, inv.Name, inv.Address, inv.Country, inv.Phone, inv.LogoPath, inv.BookKeepingCurrency)
		if err != nil {
			return fmt.Errorf("parties: update invoicer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if inv.Legal != nil {
			return upsertLegal(ctx, tx, inv.ID, *inv.Legal)
		}
		return nil
	})
}

// ListInvoicers returns the invoicers of one manager.
func (r *Repository) ListInvoicers(ctx context.Context, managerID int64) ([]Invoicer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoicerColumns+invoicerFrom+` WHERE i.manager_id = $1 ORDER BY i.id`, managerID)
	if err != nil {
		return nil, fmt.Errorf("parties: list invoicers: %w", err)
	}
	defer rows.Close()

	var out []Invoicer
	for rows.Next() {
		inv, err := scanInvoicer(rows)
		if err != nil {
			return nil, fmt.Errorf("parties: scan invoicer: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// AddBankAccount attaches a payout account.
func (r *Repository) AddBankAccount(ctx context.Context, acc *BankAccount) (*BankAccount, error) {
	query := `
		INSERT INTO bank_accounts (owner_id, bank_name, bic, rib, iban, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query, acc.OwnerID, acc.BankName, acc.BIC, acc.RIB, acc.IBAN).
		Scan(&acc.ID, &acc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parties: insert bank account: %w", err)
	}
	return acc, nil
}

const bankAccountColumns = `id, owner_id, bank_name, bic, rib, iban, created_at`

// GetBankAccount retrieves a payout account by id.
func (r *Repository) GetBankAccount(ctx context.Context, id int64) (*BankAccount, error) {
	var acc BankAccount
	err := r.pool.QueryRow(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = $1`, id).
		Scan(&acc.ID, &acc.OwnerID, &acc.BankName, &acc.BIC, &acc.RIB, &acc.IBAN, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("parties: get bank account: %w", err)
	}
	return &acc, nil
}

// ListBankAccounts returns the payout accounts of one invoicer.
func (r *Repository) ListBankAccounts(ctx context.Context, ownerID int64) ([]BankAccount, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("parties: list bank accounts: %w", err)
	}
	defer rows.Close()

	var out []BankAccount
	for rows.Next() {
		var acc BankAccount
		if err := rows.Scan(&acc.ID, &acc.OwnerID, &acc.BankName, &acc.BIC, &acc.RIB, &acc.IBAN, &acc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// DeleteBankAccount removes a payout account.
func (r *Repository) DeleteBankAccount(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bank_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("parties: delete bank account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateInvoicee inserts a client profile. A duplicate ICE maps onto
// ErrDuplicateICE via the unique constraint.
func (r *Repository) CreateInvoicee(ctx context.Context, c *Invoicee) (*Invoicee, error) {
	query := `
		INSERT INTO invoicees (invoicer_id, is_person, cin, ice, name, address, country, book_keeping_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		c.InvoicerID, c.IsPerson, c.CIN, nullableICE(c), c.Name, c.Address, c.Country, c.BookKeepingNumber,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateICE
		}
		return nil, fmt.Errorf("parties: insert invoicee: %w", err)
	}
	return c, nil
}

// nullableICE keeps the unique index on ICE from tripping over empty values.
func nullableICE(c *Invoicee) pgtype.Text {
	if c.ICE == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: c.ICE, Valid: true}
}

const invoiceeColumns = `id, invoicer_id, is_person, cin, ice, name, address, country, book_keeping_number, created_at, updated_at`

// GetInvoicee retrieves a client profile by id.
func (r *Repository) GetInvoicee(ctx context.Context, id int64) (*Invoicee, error) {
	c, err := scanInvoicee(r.pool.QueryRow(ctx, `SELECT `+invoiceeColumns+` FROM invoicees WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("parties: get invoicee: %w", err)
	}
	return c, nil
}

// UpdateInvoicee persists client profile changes.
func (r *Repository) UpdateInvoicee(ctx context.Context, c *Invoicee) error {
	query := `
		UPDATE invoicees SET is_person = $2, cin = $3, ice = $4, name = $5, address = $6,
			country = $7, book_keeping_number = $8, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		c.ID, c.IsPerson, c.CIN, nullableICE(c), c.Name, c.Address, c.Country, c.BookKeepingNumber)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateICE
		}
		return fmt.Errorf("parties: update invoicee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteInvoicee removes a client profile.
func (r *Repository) DeleteInvoicee(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoicees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("parties: delete invoicee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListInvoicees returns the clients of one invoicer.
func (r *Repository) ListInvoicees(ctx context.Context, invoicerID int64) ([]Invoicee, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceeColumns+` FROM invoicees WHERE invoicer_id = $1 ORDER BY name, id`, invoicerID)
	if err != nil {
		return nil, fmt.Errorf("parties: list invoicees: %w", err)
	}
	defer rows.Close()

	var out []Invoicee
	for rows.Next() {
		c, err := scanInvoicee(rows)
		if err != nil {
			return nil, fmt.Errorf("parties: scan invoicee: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// BalanceRows aggregates one invoicee's finalized invoices per currency over
// the window. Outstanding never goes below zero per invoice.
func (r *Repository) BalanceRows(ctx context.Context, invoiceeID int64, from, to time.Time) ([]Balance, error) {
	query := `
		SELECT base_currency,
			COALESCE(SUM(owed_amount), 0),
			COALESCE(SUM(paid_amount), 0),
			COALESCE(SUM(GREATEST(owed_amount - paid_amount, 0)), 0)
		FROM invoices
		WHERE invoicee_id = $1
		  AND state IN (2, 3)
		  AND COALESCE(facturation_date, created_at) BETWEEN $2 AND $3
		GROUP BY base_currency
		ORDER BY base_currency`
	rows, err := r.pool.Query(ctx, query, invoiceeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("parties: balance rows: %w", err)
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		var owed, paid, outstanding pgtype.Numeric
		if err := rows.Scan(&b.Currency, &owed, &paid, &outstanding); err != nil {
			return nil, err
		}
		b.Owed = db.NumericToDecimal(owed)
		b.Paid = db.NumericToDecimal(paid)
		b.Outstanding = db.NumericToDecimal(outstanding)
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanInvoicer(row pgx.Row) (*Invoicer, error) {
	var inv Invoicer
	var ice, rc, patente, cnss, fiscal pgtype.Text
	err := row.Scan(
		&inv.ID, &inv.ManagerID, &inv.Name, &inv.Address, &inv.Country, &inv.Phone, &inv.LogoPath,
		&inv.BookKeepingCurrency, &inv.CreatedAt, &inv.UpdatedAt,
		&ice, &rc, &patente, &cnss, &fiscal,
	)
	if err != nil {
		return nil, err
	}
	if ice.Valid || rc.Valid || patente.Valid || cnss.Valid || fiscal.Valid {
		inv.Legal = &LegalInfo{ICE: ice.String, RC: rc.String, Patente: patente.String, CNSS: cnss.String, Fiscal: fiscal.String}
	}
	return &inv, nil
}

func scanInvoicee(row pgx.Row) (*Invoicee, error) {
	var c Invoicee
	var ice pgtype.Text
	err := row.Scan(
		&c.ID, &c.InvoicerID, &c.IsPerson, &c.CIN, &ice, &c.Name, &c.Address,
		&c.Country, &c.BookKeepingNumber, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ICE = ice.String
	return &c, nil
}
