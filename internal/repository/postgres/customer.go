package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const customerColumns = `id, organization_id, first_name, last_name, email, phone, address, segment, notes,
	custom_fields, status, last_interaction, lifetime_value, purchase_count, total_spent,
	average_purchase_value, purchase_frequency_days, first_purchase_date, last_purchase_date,
	segment_updated_at, created_at, updated_at`

type customerRepository struct {
	BaseRepository
}

func NewCustomerRepository(base BaseRepository) repository.CustomerRepository {
	return &customerRepository{base}
}

func (r *customerRepository) Create(ctx context.Context, c *model.Customer) error {
	query := `
		INSERT INTO customers (
			id, organization_id, first_name, last_name, email, phone, address,
			segment, notes, custom_fields, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.OrganizationID,
		c.FirstName,
		c.LastName,
		c.Email,
		c.Phone,
		c.Address,
		c.Segment,
		c.Notes,
		c.CustomFields,
		c.Status,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return wrap("create customer", err)
}

func (r *customerRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND organization_id = $2`

	var c model.Customer
	if err := r.db.GetContext(ctx, &c, query, id, orgID); err != nil {
		return nil, wrap("get customer", err)
	}
	return &c, nil
}

func (r *customerRepository) List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, int, error) {
	where := []string{"organization_id = $1"}
	args := []interface{}{f.OrganizationID}

	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Segment != "" {
		args = append(args, f.Segment)
		where = append(where, fmt.Sprintf("segment = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", n, n, n))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM customers WHERE `+clause, args...); err != nil {
		return nil, 0, wrap("count customers", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		customerColumns, clause, len(args)+1, len(args)+2)
	args = append(args, f.Limit(), f.Offset())

	var customers []*model.Customer
	if err := r.db.SelectContext(ctx, &customers, query, args...); err != nil {
		return nil, 0, wrap("list customers", err)
	}
	return customers, total, nil
}

func (r *customerRepository) Update(ctx context.Context, c *model.Customer) error {
	query := `
		UPDATE customers
		SET first_name = $1, last_name = $2, email = $3, phone = $4, address = $5,
			segment = $6, notes = $7, custom_fields = $8, status = $9, updated_at = $10
		WHERE id = $11 AND organization_id = $12
	`
	res, err := r.db.ExecContext(ctx, query,
		c.FirstName,
		c.LastName,
		c.Email,
		c.Phone,
		c.Address,
		c.Segment,
		c.Notes,
		c.CustomFields,
		c.Status,
		c.UpdatedAt,
		c.ID,
		c.OrganizationID,
	)
	if err != nil {
		return wrap("update customer", err)
	}
	return requireAffected(res, "update customer")
}

func (r *customerRepository) RecordPurchase(ctx context.Context, orgID, customerID uuid.UUID, p *model.Purchase, fn func(*model.Customer) error) (*model.Customer, bool, error) {
	var (
		customer model.Customer
		applied  bool
	)

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		lock := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND organization_id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, &customer, lock, customerID, orgID); err != nil {
			return wrap("lock customer", err)
		}

		if p.RequestID != nil {
			var seen bool
			if err := tx.GetContext(ctx, &seen,
				`SELECT EXISTS (SELECT 1 FROM purchases WHERE customer_id = $1 AND request_id = $2)`,
				customerID, *p.RequestID); err != nil {
				return wrap("check purchase request", err)
			}
			if seen {
				return nil
			}
		}

		if err := fn(&customer); err != nil {
			return err
		}

		update := `
			UPDATE customers
			SET purchase_count = $1, total_spent = $2, average_purchase_value = $3,
				purchase_frequency_days = $4, first_purchase_date = $5, last_purchase_date = $6,
				lifetime_value = $7, segment_updated_at = $8, updated_at = $9
			WHERE id = $10
		`
		if _, err := tx.ExecContext(ctx, update,
			customer.PurchaseCount,
			customer.TotalSpent,
			customer.AveragePurchaseValue,
			customer.PurchaseFrequencyDays,
			customer.FirstPurchaseDate,
			customer.LastPurchaseDate,
			customer.LifetimeValue,
			customer.SegmentUpdatedAt,
			customer.UpdatedAt,
			customer.ID,
		); err != nil {
			return wrap("update customer metrics", err)
		}

		insert := `
			INSERT INTO purchases (id, customer_id, request_id, purchase_date, amount, items_count, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := tx.ExecContext(ctx, insert,
			p.ID, p.CustomerID, p.RequestID, p.PurchaseDate, p.Amount, p.ItemsCount, p.Notes, p.CreatedAt,
		); err != nil {
			return wrap("insert purchase", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &customer, applied, nil
}
