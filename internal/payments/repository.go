package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PayorManager resolves the manager of the invoicer the invoicee belongs to.
func (r *Repository) PayorManager(ctx context.Context, payorID int64) (int64, error) {
	query := `
		SELECT i.manager_id
		FROM invoicees c
		JOIN invoicers i ON i.id = c.invoicer_id
		WHERE c.id = $1`

	var managerID int64
	err := r.pool.QueryRow(ctx, query, payorID).Scan(&managerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("payments: payor manager: %w", err)
	}
	return managerID, nil
}

// CreatePayment inserts the payment, its initial revision, the invoice links
// and the balance adjustments in one transaction. Linked invoices are locked
// in id order before their balances change.
func (r *Repository) CreatePayment(ctx context.Context, p *Payment, invoiceIDs []int64, adjustments []Adjustment) (*Payment, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockInvoices(ctx, tx, invoiceIDs); err != nil {
			return err
		}
		query := `
			INSERT INTO payments (reference, payor_id, payment_day, method, paid_amount, bank_account_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			RETURNING id, created_at, updated_at`
		var bankAccountID pgtype.Int8
		if p.BankAccountID != nil {
			bankAccountID = pgtype.Int8{Int64: *p.BankAccountID, Valid: true}
		}
		err := tx.QueryRow(ctx, query,
			p.Reference, p.PayorID, p.PaymentDay, string(p.Method), p.PaidAmount.String(), bankAccountID,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("payments: insert payment: %w", err)
		}
		if err := appendRevision(ctx, tx, p.ID, p.PaidAmount); err != nil {
			return err
		}
		for _, invoiceID := range invoiceIDs {
			if err := insertLink(ctx, tx, p.ID, invoiceID); err != nil {
				return err
			}
		}
		return applyAdjustments(ctx, tx, adjustments)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

const paymentColumns = `id, reference, payor_id, payment_day, method, paid_amount, bank_account_id, created_at, updated_at`

// GetPayment retrieves a payment by id.
func (r *Repository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payments: get payment: %w", err)
	}
	return p, nil
}

// ListPayments returns the payments of one invoicee, newest first.
func (r *Repository) ListPayments(ctx context.Context, payorID int64) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payor_id = $1 ORDER BY payment_day DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, payorID)
	if err != nil {
		return nil, fmt.Errorf("payments: list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("payments: scan payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Apply executes one allocation mutation atomically. Touched invoices are
// locked in id order so concurrent payments against overlapping invoice sets
// serialize instead of deadlocking.
func (r *Repository) Apply(ctx context.Context, paymentID int64, m Mutation) error {
	ids := make([]int64, 0, len(m.Adjustments))
	for _, adj := range m.Adjustments {
		ids = append(ids, adj.InvoiceID)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockInvoices(ctx, tx, ids); err != nil {
			return err
		}
		if err := applyAdjustments(ctx, tx, m.Adjustments); err != nil {
			return err
		}
		if m.ClearLinks {
			if _, err := tx.Exec(ctx, `DELETE FROM payment_invoices WHERE payment_id = $1`, paymentID); err != nil {
				return fmt.Errorf("payments: clear links: %w", err)
			}
		}
		if m.RemoveLink != nil {
			tag, err := tx.Exec(ctx, `DELETE FROM payment_invoices WHERE payment_id = $1 AND invoice_id = $2`, paymentID, *m.RemoveLink)
			if err != nil {
				return fmt.Errorf("payments: remove link: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotLinked
			}
		}
		if m.AddLink != nil {
			if err := insertLink(ctx, tx, paymentID, *m.AddLink); err != nil {
				return err
			}
		}
		for _, invoiceID := range m.AddLinks {
			if err := insertLink(ctx, tx, paymentID, invoiceID); err != nil {
				return err
			}
		}
		if m.SetAmount != nil {
			tag, err := tx.Exec(ctx, `UPDATE payments SET paid_amount = $2, updated_at = NOW() WHERE id = $1`, paymentID, m.SetAmount.String())
			if err != nil {
				return fmt.Errorf("payments: set amount: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
			if err := appendRevision(ctx, tx, paymentID, *m.SetAmount); err != nil {
				return err
			}
		}
		if m.Delete {
			tag, err := tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, paymentID)
			if err != nil {
				return fmt.Errorf("payments: delete payment: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
}

// LinkedInvoiceIDs returns the ids of the invoices the payment covers.
func (r *Repository) LinkedInvoiceIDs(ctx context.Context, paymentID int64) ([]int64, error) {
	query := `SELECT invoice_id FROM payment_invoices WHERE payment_id = $1 ORDER BY invoice_id`
	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("payments: linked invoices: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetInvoices loads invoices by id for allocation checks.
func (r *Repository) GetInvoices(ctx context.Context, ids []int64) ([]invoicing.Invoice, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, invoicer_id, invoicee_id, base_currency, state, due_date, facturation_date, paid_amount, owed_amount
		FROM invoices WHERE id = ANY($1) ORDER BY id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("payments: get invoices: %w", err)
	}
	defer rows.Close()

	var out []invoicing.Invoice
	for rows.Next() {
		var inv invoicing.Invoice
		var state int
		var paid, owed pgtype.Numeric
		if err := rows.Scan(&inv.ID, &inv.InvoicerID, &inv.InvoiceeID, &inv.BaseCurrency, &state, &inv.DueDate, &inv.FacturationDate, &paid, &owed); err != nil {
			return nil, err
		}
		inv.State = invoicing.State(state)
		inv.PaidAmount = db.NumericToDecimal(paid)
		inv.OwedAmount = db.NumericToDecimal(owed)
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Revisions returns the amount history of a payment, oldest first.
func (r *Repository) Revisions(ctx context.Context, paymentID int64) ([]Revision, error) {
	query := `SELECT id, payment_id, paid_amount, recorded_at FROM payment_revisions WHERE payment_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("payments: revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var rev Revision
		var amount pgtype.Numeric
		if err := rows.Scan(&rev.ID, &rev.PaymentID, &amount, &rev.RecordedAt); err != nil {
			return nil, err
		}
		rev.PaidAmount = db.NumericToDecimal(amount)
		out = append(out, rev)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var method string
	var amount pgtype.Numeric
	var bankAccountID pgtype.Int8
	err := row.Scan(&p.ID, &p.Reference, &p.PayorID, &p.PaymentDay, &method, &amount, &bankAccountID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Method = invoicing.PaymentMethod(method)
	p.PaidAmount = db.NumericToDecimal(amount)
	if bankAccountID.Valid {
		p.BankAccountID = &bankAccountID.Int64
	}
	return &p, nil
}

func lockInvoices(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := tx.Query(ctx, `SELECT id FROM invoices WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("payments: lock invoices: %w", err)
	}
	rows.Close()
	return rows.Err()
}

func applyAdjustments(ctx context.Context, tx pgx.Tx, adjustments []Adjustment) error {
	for _, adj := range adjustments {
		tag, err := tx.Exec(ctx,
			`UPDATE invoices SET paid_amount = paid_amount + $2, updated_at = NOW() WHERE id = $1`,
			adj.InvoiceID, adj.Delta.String())
		if err != nil {
			return fmt.Errorf("payments: adjust invoice %d: %w", adj.InvoiceID, err)
		}
		if tag.RowsAffected() == 0 {
			return invoicing.ErrNotFound
		}
	}
	return nil
}

func appendRevision(ctx context.Context, tx pgx.Tx, paymentID int64, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO payment_revisions (payment_id, paid_amount, recorded_at) VALUES ($1, $2, NOW())`,
		paymentID, amount.String())
	if err != nil {
		return fmt.Errorf("payments: append revision: %w", err)
	}
	return nil
}

func insertLink(ctx context.Context, tx pgx.Tx, paymentID, invoiceID int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO payment_invoices (payment_id, invoice_id) VALUES ($1, $2)`,
		paymentID, invoiceID)
	if err != nil {
		return fmt.Errorf("payments: link invoice %d: %w", invoiceID, err)
	}
	return nil
}
