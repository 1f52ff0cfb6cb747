package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MedGhazal/InvoiceGenerator/internal/platform/db"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoicing.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InvoicerManager resolves the manager of an invoicer.
func (r *Repository) InvoicerManager(ctx context.Context, invoicerID int64) (int64, error) {
	var managerID int64
	err := r.pool.QueryRow(ctx, `SELECT manager_id FROM invoicers WHERE id = $1`, invoicerID).Scan(&managerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("invoicing: invoicer manager: %w", err)
	}
	return managerID, nil
}

const invoiceColumns = `id, invoicer_id, invoicee_id, bank_account_id, count, base_currency,
	due_date, facturation_date, payment_method, sales_account, vat_account, state,
	paid_amount, owed_amount, created_at, updated_at`

// CreateInvoice inserts a draft or estimate.
func (r *Repository) CreateInvoice(ctx context.Context, inv *Invoice) (*Invoice, error) {
	query := `
		INSERT INTO invoices (
			invoicer_id, invoicee_id, bank_account_id, base_currency,
			due_date, facturation_date, payment_method, sales_account, vat_account,
			state, paid_amount, owed_amount, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var bankAccountID pgtype.Int8
	if inv.BankAccountID != nil {
		bankAccountID = pgtype.Int8{Int64: *inv.BankAccountID, Valid: true}
	}
	err := r.pool.QueryRow(ctx, query,
		inv.InvoicerID, inv.InvoiceeID, bankAccountID, inv.BaseCurrency,
		inv.DueDate, inv.FacturationDate, string(inv.PaymentMethod),
		inv.SalesAccount, inv.VATAccount, int(inv.State),
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invoicing: insert invoice: %w", err)
	}
	return inv, nil
}

// GetInvoice retrieves an invoice by id.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invoicing: get invoice: %w", err)
	}
	return inv, nil
}

// UpdateInvoiceMeta persists editable metadata; amounts and state untouched.
func (r *Repository) UpdateInvoiceMeta(ctx context.Context, inv *Invoice) error {
	query := `
		UPDATE invoices SET
			invoicee_id = $2, bank_account_id = $3, base_currency = $4,
			due_date = $5, facturation_date = $6, payment_method = $7,
			sales_account = $8, vat_account = $9, updated_at = NOW()
		WHERE id = $1`

	var bankAccountID pgtype.Int8
	if inv.BankAccountID != nil {
		bankAccountID = pgtype.Int8{Int64: *inv.BankAccountID, Valid: true}
	}
	tag, err := r.pool.Exec(ctx, query,
		inv.ID, inv.InvoiceeID, bankAccountID, inv.BaseCurrency,
		inv.DueDate, inv.FacturationDate, string(inv.PaymentMethod),
		inv.SalesAccount, inv.VATAccount,
	)
	if err != nil {
		return fmt.Errorf("invoicing: update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteInvoice removes an invoice with its projects and fees.
func (r *Repository) DeleteInvoice(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM fees WHERE project_id IN (SELECT id FROM projects WHERE invoice_id = $1)`, id); err != nil {
			return fmt.Errorf("invoicing: delete fees: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM projects WHERE invoice_id = $1`, id); err != nil {
			return fmt.Errorf("invoicing: delete projects: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("invoicing: delete invoice: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// statesForKind maps a listing kind onto the states it shows.
func statesForKind(kind ListKind) []int {
	switch kind {
	case ListEstimates:
		return []int{int(StateEstimate)}
	case ListCreditNotes:
		return []int{int(StateCredited)}
	default:
		return []int{int(StateDraft), int(StateValidated), int(StatePaid)}
	}
}

// ListInvoices returns one invoicer's invoices inside the date window.
// Undated drafts fall back to their creation date for the window check.
func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE invoicer_id = $1
		  AND state = ANY($2)
		  AND COALESCE(facturation_date, created_at) BETWEEN $3 AND $4
		ORDER BY COALESCE(facturation_date, created_at) DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, filter.InvoicerID, statesForKind(filter.Kind), filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("invoicing: list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("invoicing: scan invoice: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// InsertProject appends a project to an invoice.
func (r *Repository) InsertProject(ctx context.Context, p *Project) (*Project, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO projects (invoice_id, title) VALUES ($1, $2) RETURNING id`,
		p.InvoiceID, p.Title,
	).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: insert project: %w", err)
	}
	return p, nil
}

// RenameProject retitles a project.
func (r *Repository) RenameProject(ctx context.Context, id int64, title string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET title = $2 WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("invoicing: rename project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProject retrieves a project by id.
func (r *Repository) GetProject(ctx context.Context, id int64) (*Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `SELECT id, invoice_id, title FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.InvoiceID, &p.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invoicing: get project: %w", err)
	}
	return &p, nil
}

// ListProjects returns the projects of one invoice in insertion order.
func (r *Repository) ListProjects(ctx context.Context, invoiceID int64) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, title FROM projects WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Title); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountProjects counts the projects of one invoice.
func (r *Repository) CountProjects(ctx context.Context, invoiceID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE invoice_id = $1`, invoiceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("invoicing: count projects: %w", err)
	}
	return n, nil
}

// DeleteProject removes a project with its fees and retracts owedDelta from
// the parent invoice in one transaction.
func (r *Repository) DeleteProject(ctx context.Context, projectID int64, owedDelta decimal.Decimal) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var invoiceID int64
		err := tx.QueryRow(ctx, `SELECT invoice_id FROM projects WHERE id = $1 FOR UPDATE`, projectID).Scan(&invoiceID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("invoicing: lock project: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM fees WHERE project_id = $1`, projectID); err != nil {
			return fmt.Errorf("invoicing: delete project fees: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID); err != nil {
			return fmt.Errorf("invoicing: delete project: %w", err)
		}
		return adjustOwed(ctx, tx, invoiceID, owedDelta.Neg())
	})
}

// InsertFee inserts a fee and adds owedDelta to the parent invoice in one
// transaction.
func (r *Repository) InsertFee(ctx context.Context, f *Fee, owedDelta decimal.Decimal) (*Fee, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var invoiceID int64
		err := tx.QueryRow(ctx, `SELECT invoice_id FROM projects WHERE id = $1 FOR UPDATE`, f.ProjectID).Scan(&invoiceID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("invoicing: lock project: %w", err)
		}
		query := `
			INSERT INTO fees (project_id, description, rate_unit, count, vat, book_keeping_amount)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`
		err = tx.QueryRow(ctx, query,
			f.ProjectID, f.Description, f.RateUnit.String(), f.Count, f.VAT, f.BookKeepingAmount.String(),
		).Scan(&f.ID)
		if err != nil {
			return fmt.Errorf("invoicing: insert fee: %w", err)
		}
		return adjustOwed(ctx, tx, invoiceID, owedDelta)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetFee retrieves a fee by id.
func (r *Repository) GetFee(ctx context.Context, id int64) (*Fee, error) {
	f, err := scanFee(r.pool.QueryRow(ctx, `SELECT `+feeColumns+` FROM fees WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invoicing: get fee: %w", err)
	}
	return f, nil
}

// UpdateFee edits a fee and overwrites the parent invoice's owed amount with
// the freshly recomputed child sum, in one transaction.
func (r *Repository) UpdateFee(ctx context.Context, f *Fee, newOwed decimal.Decimal) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var invoiceID int64
		err := tx.QueryRow(ctx, `SELECT invoice_id FROM projects WHERE id = $1 FOR UPDATE`, f.ProjectID).Scan(&invoiceID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("invoicing: lock project: %w", err)
		}
		query := `
			UPDATE fees SET description = $2, rate_unit = $3, count = $4, vat = $5, book_keeping_amount = $6
			WHERE id = $1`
		tag, err := tx.Exec(ctx, query,
			f.ID, f.Description, f.RateUnit.String(), f.Count, f.VAT, f.BookKeepingAmount.String())
		if err != nil {
			return fmt.Errorf("invoicing: update fee: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE invoices SET owed_amount = $2, updated_at = NOW() WHERE id = $1`, invoiceID, newOwed.String())
		if err != nil {
			return fmt.Errorf("invoicing: set owed amount: %w", err)
		}
		return nil
	})
}

// DeleteFee removes a fee and retracts owedDelta from the parent invoice in
// one transaction.
func (r *Repository) DeleteFee(ctx context.Context, feeID int64, owedDelta decimal.Decimal) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var invoiceID int64
		err := tx.QueryRow(ctx, `
			SELECT p.invoice_id FROM fees f JOIN projects p ON p.id = f.project_id
			WHERE f.id = $1 FOR UPDATE OF p`, feeID).Scan(&invoiceID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("invoicing: lock fee: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM fees WHERE id = $1`, feeID); err != nil {
			return fmt.Errorf("invoicing: delete fee: %w", err)
		}
		return adjustOwed(ctx, tx, invoiceID, owedDelta.Neg())
	})
}

const feeColumns = `id, project_id, description, rate_unit, count, vat, book_keeping_amount`

// ListFees returns the fees of one project in insertion order.
func (r *Repository) ListFees(ctx context.Context, projectID int64) ([]Fee, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+feeColumns+` FROM fees WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: list fees: %w", err)
	}
	defer rows.Close()
	return collectFees(rows)
}

// ListInvoiceFees returns every fee of an invoice across all its projects.
func (r *Repository) ListInvoiceFees(ctx context.Context, invoiceID int64) ([]Fee, error) {
	query := `
		SELECT f.id, f.project_id, f.description, f.rate_unit, f.count, f.vat, f.book_keeping_amount
		FROM fees f
		JOIN projects p ON p.id = f.project_id
		WHERE p.invoice_id = $1
		ORDER BY f.project_id, f.id`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: list invoice fees: %w", err)
	}
	defer rows.Close()
	return collectFees(rows)
}

// Finalize assigns the next sequence number and flips the state inside one
// transaction. The per-sequence advisory lock serializes concurrent
// finalizations so MAX(count)+1 cannot hand out duplicates. An invoice that
// already carries a number keeps it.
func (r *Repository) Finalize(ctx context.Context, invoiceID int64, state State) (*Invoice, error) {
	var out *Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		inv, err := scanInvoice(tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, invoiceID))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("invoicing: lock invoice: %w", err)
		}
		if inv.Count == nil {
			count, err := nextSequence(ctx, tx, inv, state)
			if err != nil {
				return err
			}
			inv.Count = &count
		}
		tag, err := tx.Exec(ctx, `UPDATE invoices SET state = $2, count = $3, updated_at = NOW() WHERE id = $1`,
			invoiceID, int(state), *inv.Count)
		if err != nil {
			return fmt.Errorf("invoicing: finalize invoice: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		inv.State = state
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// nextSequence computes MAX(count)+1 within the invoicer, facturation year
// and sequence class of the target state.
func nextSequence(ctx context.Context, tx pgx.Tx, inv *Invoice, state State) (int, error) {
	if inv.FacturationDate == nil {
		return 0, ErrDatesRequired
	}
	year := inv.FacturationDate.Year()
	key := shared.SequenceLockKey(inv.InvoicerID, year, int(state.Class()))
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return 0, fmt.Errorf("invoicing: sequence lock: %w", err)
	}
	var states []int
	if state.Class() == SeqCreditNote {
		states = []int{int(StateCredited)}
	} else {
		states = []int{int(StateValidated), int(StatePaid)}
	}
	var next int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(count), 0) + 1
		FROM invoices
		WHERE invoicer_id = $1
		  AND state = ANY($2)
		  AND EXTRACT(YEAR FROM facturation_date) = $3`,
		inv.InvoicerID, states, year,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("invoicing: next sequence: %w", err)
	}
	return next, nil
}

// InsertCreditNote creates the numbered credit note with its single project
// and fee, zeroes the original's owed amount and marks it credited, all in
// one transaction.
func (r *Repository) InsertCreditNote(ctx context.Context, originalID int64, note *Invoice, project *Project, fee *Fee) (*Invoice, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT id FROM invoices WHERE id = $1 FOR UPDATE`, originalID); err != nil {
			return fmt.Errorf("invoicing: lock original: %w", err)
		}
		count, err := nextSequence(ctx, tx, note, StateCredited)
		if err != nil {
			return err
		}
		note.Count = &count
		owed := fee.TotalAfterVAT()
		var bankAccountID pgtype.Int8
		if note.BankAccountID != nil {
			bankAccountID = pgtype.Int8{Int64: *note.BankAccountID, Valid: true}
		}
		query := `
			INSERT INTO invoices (
				invoicer_id, invoicee_id, bank_account_id, count, base_currency,
				due_date, facturation_date, payment_method, sales_account, vat_account,
				state, paid_amount, owed_amount, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, NOW(), NOW())
			RETURNING id, created_at, updated_at`
		err = tx.QueryRow(ctx, query,
			note.InvoicerID, note.InvoiceeID, bankAccountID, count, note.BaseCurrency,
			note.DueDate, note.FacturationDate, string(note.PaymentMethod),
			note.SalesAccount, note.VATAccount, int(StateCredited), owed.String(),
		).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
		if err != nil {
			return fmt.Errorf("invoicing: insert credit note: %w", err)
		}
		note.OwedAmount = owed

		err = tx.QueryRow(ctx, `INSERT INTO projects (invoice_id, title) VALUES ($1, $2) RETURNING id`,
			note.ID, project.Title).Scan(&project.ID)
		if err != nil {
			return fmt.Errorf("invoicing: insert credit project: %w", err)
		}
		project.InvoiceID = note.ID
		fee.ProjectID = project.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO fees (project_id, description, rate_unit, count, vat, book_keeping_amount)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			fee.ProjectID, fee.Description, fee.RateUnit.String(), fee.Count, fee.VAT, fee.BookKeepingAmount.String(),
		).Scan(&fee.ID)
		if err != nil {
			return fmt.Errorf("invoicing: insert credit fee: %w", err)
		}

		_, err = tx.Exec(ctx, `UPDATE invoices SET state = $2, owed_amount = 0, updated_at = NOW() WHERE id = $1`,
			originalID, int(StateCredited))
		if err != nil {
			return fmt.Errorf("invoicing: credit original: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func adjustOwed(ctx context.Context, tx pgx.Tx, invoiceID int64, delta decimal.Decimal) error {
	tag, err := tx.Exec(ctx,
		`UPDATE invoices SET owed_amount = owed_amount + $2, updated_at = NOW() WHERE id = $1`,
		invoiceID, delta.String())
	if err != nil {
		return fmt.Errorf("invoicing: adjust owed amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var bankAccountID pgtype.Int8
	var count pgtype.Int4
	var method string
	var state int
	var paid, owed pgtype.Numeric
	var due, fact pgtype.Timestamptz
	err := row.Scan(
		&inv.ID, &inv.InvoicerID, &inv.InvoiceeID, &bankAccountID, &count, &inv.BaseCurrency,
		&due, &fact, &method, &inv.SalesAccount, &inv.VATAccount, &state,
		&paid, &owed, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if bankAccountID.Valid {
		inv.BankAccountID = &bankAccountID.Int64
	}
	if count.Valid {
		c := int(count.Int32)
		inv.Count = &c
	}
	if due.Valid {
		t := due.Time
		inv.DueDate = &t
	}
	if fact.Valid {
		t := fact.Time
		inv.FacturationDate = &t
	}
	inv.PaymentMethod = PaymentMethod(method)
	inv.State = State(state)
	inv.PaidAmount = db.NumericToDecimal(paid)
	inv.OwedAmount = db.NumericToDecimal(owed)
	return &inv, nil
}

func scanFee(row pgx.Row) (*Fee, error) {
	var f Fee
	var rate, book pgtype.Numeric
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Description, &rate, &f.Count, &f.VAT, &book); err != nil {
		return nil, err
	}
	f.RateUnit = db.NumericToDecimal(rate)
	f.BookKeepingAmount = db.NumericToDecimal(book)
	return &f, nil
}

func collectFees(rows pgx.Rows) ([]Fee, error) {
	var out []Fee
	for rows.Next() {
		f, err := scanFee(rows)
		if err != nil {
			return nil, fmt.Errorf("invoicing: scan fee: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}
