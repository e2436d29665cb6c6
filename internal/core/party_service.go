package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PartyService manages customers and vendors, the two ledger-bearing
// parties. Ledger balances are read here but mutated only by the
// settlement engines inside their own transactions.
type PartyService interface {
	CreateCustomer(ctx context.Context, tenantID, name, phone, email, address string) (*Customer, error)
	GetCustomer(ctx context.Context, tenantID string, customerID int) (*Customer, error)
	GetCustomers(ctx context.Context, tenantID string) ([]Customer, error)

	CreateVendor(ctx context.Context, tenantID, name, phone, email, address, gstin string) (*Vendor, error)
	GetVendor(ctx context.Context, tenantID string, vendorID int) (*Vendor, error)
	GetVendors(ctx context.Context, tenantID string) ([]Vendor, error)
}

type partyService struct {
	pool *pgxpool.Pool
}

func NewPartyService(pool *pgxpool.Pool) PartyService {
	return &partyService{pool: pool}
}

func (s *partyService) CreateCustomer(ctx context.Context, tenantID, name, phone, email, address string) (*Customer, error) {
	if name == "" || phone == "" {
		return nil, validationf("customer name and phone are required")
	}

	var exists int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM customers WHERE tenant_id = $1 AND phone = $2",
		tenantID, phone,
	).Scan(&exists)
	if err == nil {
		return nil, validationf("customer with phone %s already exists", phone)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check customer phone: %w", err)
	}

	var c Customer
	err = s.pool.QueryRow(ctx, `
		INSERT INTO customers (tenant_id, name, phone, email, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, tenant_id, name, phone, email, address, ledger_balance, created_at
	`, tenantID, name, phone, email, address).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.LedgerBalance, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &c, nil
}

func (s *partyService) GetCustomer(ctx context.Context, tenantID string, customerID int) (*Customer, error) {
	var c Customer
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, phone, email, address, ledger_balance, created_at
		FROM customers
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, customerID).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.LedgerBalance, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("customer %d", customerID)
		}
		return nil, fmt.Errorf("failed to fetch customer %d: %w", customerID, err)
	}
	return &c, nil
}

func (s *partyService) GetCustomers(ctx context.Context, tenantID string) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, name, phone, email, address, ledger_balance, created_at
		FROM customers
		WHERE tenant_id = $1
		ORDER BY name, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Email, &c.Address,
			&c.LedgerBalance, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *partyService) CreateVendor(ctx context.Context, tenantID, name, phone, email, address, gstin string) (*Vendor, error) {
	if name == "" {
		return nil, validationf("vendor name is required")
	}

	var v Vendor
	err := s.pool.QueryRow(ctx, `
		INSERT INTO vendors (tenant_id, name, phone, email, address, gstin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, tenant_id, name, phone, email, address, gstin, ledger_balance, created_at
	`, tenantID, name, phone, email, address, gstin).Scan(
		&v.ID, &v.TenantID, &v.Name, &v.Phone, &v.Email, &v.Address, &v.GSTIN, &v.LedgerBalance, &v.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vendor: %w", err)
	}
	return &v, nil
}

func (s *partyService) GetVendor(ctx context.Context, tenantID string, vendorID int) (*Vendor, error) {
	var v Vendor
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, phone, email, address, gstin, ledger_balance, created_at
		FROM vendors
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, vendorID).Scan(
		&v.ID, &v.TenantID, &v.Name, &v.Phone, &v.Email, &v.Address, &v.GSTIN, &v.LedgerBalance, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("vendor %d", vendorID)
		}
		return nil, fmt.Errorf("failed to fetch vendor %d: %w", vendorID, err)
	}
	return &v, nil
}

func (s *partyService) GetVendors(ctx context.Context, tenantID string) ([]Vendor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, name, phone, email, address, gstin, ledger_balance, created_at
		FROM vendors
		WHERE tenant_id = $1
		ORDER BY name, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendors: %w", err)
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.TenantID, &v.Name, &v.Phone, &v.Email, &v.Address,
			&v.GSTIN, &v.LedgerBalance, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}
