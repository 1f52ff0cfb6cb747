package parties

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// defaultBalanceTTL bounds staleness of cached invoicee balances when no
// TTL is configured.
const defaultBalanceTTL = 5 * time.Minute

// RepositoryPort defines the persistence operations for party profiles.
type RepositoryPort interface {
	CreateInvoicer(ctx context.Context, inv *Invoicer) (*Invoicer, error)
	GetInvoicer(ctx context.Context, id int64) (*Invoicer, error)
	UpdateInvoicer(ctx context.Context, inv *Invoicer) error
	ListInvoicers(ctx context.Context, managerID int64) ([]Invoicer, error)

	AddBankAccount(ctx context.Context, acc *BankAccount) (*BankAccount, error)
	GetBankAccount(ctx context.Context, id int64) (*BankAccount, error)
	ListBankAccounts(ctx context.Context, ownerID int64) ([]BankAccount, error)
	DeleteBankAccount(ctx context.Context, id int64) error

	CreateInvoicee(ctx context.Context, c *Invoicee) (*Invoicee, error)
	GetInvoicee(ctx context.Context, id int64) (*Invoicee, error)
	UpdateInvoicee(ctx context.Context, c *Invoicee) error
	DeleteInvoicee(ctx context.Context, id int64) error
	ListInvoicees(ctx context.Context, invoicerID int64) ([]Invoicee, error)

	BalanceRows(ctx context.Context, invoiceeID int64, from, to time.Time) ([]Balance, error)
}

// Service implements party management and balance reads.
type Service struct {
	repo    RepositoryPort
	cache   *redis.Client
	ttl     time.Duration
	flights singleflight.Group
}

// NewService builds a Service instance. cache may be nil; balances are then
// always computed from the repository. ttl <= 0 falls back to the default.
func NewService(repo RepositoryPort, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultBalanceTTL
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

func (s *Service) authorizeInvoicer(ctx context.Context, actorID, invoicerID int64) (*Invoicer, error) {
	inv, err := s.repo.GetInvoicer(ctx, invoicerID)
	if err != nil {
		return nil, err
	}
	if inv.ManagerID != actorID {
		return nil, shared.ErrForbidden
	}
	return inv, nil
}

// CreateInvoicer registers a company profile for the acting manager.
func (s *Service) CreateInvoicer(ctx context.Context, actorID int64, inv Invoicer) (*Invoicer, error) {
	inv.ManagerID = actorID
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return s.repo.CreateInvoicer(ctx, &inv)
}

// GetInvoicer returns one invoicer after an ownership check.
func (s *Service) GetInvoicer(ctx context.Context, actorID, id int64) (*Invoicer, error) {
	return s.authorizeInvoicer(ctx, actorID, id)
}

// UpdateInvoicer edits an invoicer profile, legal info included.
func (s *Service) UpdateInvoicer(ctx context.Context, actorID int64, inv Invoicer) (*Invoicer, error) {
	stored, err := s.authorizeInvoicer(ctx, actorID, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.ManagerID = stored.ManagerID
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateInvoicer(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvoicers returns the acting manager's invoicers.
func (s *Service) ListInvoicers(ctx context.Context, actorID int64) ([]Invoicer, error) {
	return s.repo.ListInvoicers(ctx, actorID)
}

// AddBankAccount attaches a payout account to an invoicer.
func (s *Service) AddBankAccount(ctx context.Context, actorID int64, acc BankAccount) (*BankAccount, error) {
	if _, err := s.authorizeInvoicer(ctx, actorID, acc.OwnerID); err != nil {
		return nil, err
	}
	if err := acc.Validate(); err != nil {
		return nil, err
	}
	return s.repo.AddBankAccount(ctx, &acc)
}

// ListBankAccounts returns the payout accounts of one invoicer.
func (s *Service) ListBankAccounts(ctx context.Context, actorID, ownerID int64) ([]BankAccount, error) {
	if _, err := s.authorizeInvoicer(ctx, actorID, ownerID); err != nil {
		return nil, err
	}
	return s.repo.ListBankAccounts(ctx, ownerID)
}

// RemoveBankAccount detaches a payout account.
func (s *Service) RemoveBankAccount(ctx context.Context, actorID, id int64) error {
	acc, err := s.repo.GetBankAccount(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.authorizeInvoicer(ctx, actorID, acc.OwnerID); err != nil {
		return err
	}
	return s.repo.DeleteBankAccount(ctx, id)
}

// CreateInvoicee registers a client under one of the actor's invoicers.
func (s *Service) CreateInvoicee(ctx context.Context, actorID int64, c Invoicee) (*Invoicee, error) {
	if _, err := s.authorizeInvoicer(ctx, actorID, c.InvoicerID); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return s.repo.CreateInvoicee(ctx, &c)
}

func (s *Service) authorizedInvoicee(ctx context.Context, actorID, id int64) (*Invoicee, error) {
	c, err := s.repo.GetInvoicee(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeInvoicer(ctx, actorID, c.InvoicerID); err != nil {
		return nil, err
	}
	return c, nil
}

// GetInvoicee returns one client after an ownership check.
func (s *Service) GetInvoicee(ctx context.Context, actorID, id int64) (*Invoicee, error) {
	return s.authorizedInvoicee(ctx, actorID, id)
}

// UpdateInvoicee edits a client profile.
func (s *Service) UpdateInvoicee(ctx context.Context, actorID int64, c Invoicee) (*Invoicee, error) {
	stored, err := s.authorizedInvoicee(ctx, actorID, c.ID)
	if err != nil {
		return nil, err
	}
	c.InvoicerID = stored.InvoicerID
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateInvoicee(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteInvoicee removes a client profile.
func (s *Service) DeleteInvoicee(ctx context.Context, actorID, id int64) error {
	if _, err := s.authorizedInvoicee(ctx, actorID, id); err != nil {
		return err
	}
	return s.repo.DeleteInvoicee(ctx, id)
}

// ListInvoicees returns the clients of one invoicer.
func (s *Service) ListInvoicees(ctx context.Context, actorID, invoicerID int64) ([]Invoicee, error) {
	if _, err := s.authorizeInvoicer(ctx, actorID, invoicerID); err != nil {
		return nil, err
	}
	return s.repo.ListInvoicees(ctx, invoicerID)
}

// Balances returns one invoicee's per-currency totals over a date window.
// Concurrent requests for the same window collapse onto one computation and
// the result is cached for a short TTL.
func (s *Service) Balances(ctx context.Context, actorID, invoiceeID int64, from, to time.Time) ([]Balance, error) {
	if _, err := s.authorizedInvoicee(ctx, actorID, invoiceeID); err != nil {
		return nil, err
	}
	key := balanceKey(invoiceeID, from, to)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var out []Balance
			if err := json.Unmarshal(cached, &out); err == nil {
				return out, nil
			}
		}
	}
	v, err, _ := s.flights.Do(key, func() (any, error) {
		rows, err := s.repo.BalanceRows(ctx, invoiceeID, from, to)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if payload, err := json.Marshal(rows); err == nil {
				s.cache.Set(ctx, key, payload, s.ttl)
			}
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Balance), nil
}

// InvalidateBalances drops the cached balances of one invoicee.
func (s *Service) InvalidateBalances(ctx context.Context, invoiceeID int64) {
	if s.cache == nil {
		return
	}
	pattern := "balances:" + strconv.FormatInt(invoiceeID, 10) + ":*"
	iter := s.cache.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		s.cache.Del(ctx, iter.Val())
	}
}

func balanceKey(invoiceeID int64, from, to time.Time) string {
	return fmt.Sprintf("balances:%d:%s:%s", invoiceeID, from.Format("2006-01-02"), to.Format("2006-01-02"))
}
