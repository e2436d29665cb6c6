package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ExpenseInput struct {
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
}

// ExpenseService tracks operating expenses; they only feed the net
// profit line of the PnL report.
type ExpenseService interface {
	CreateExpense(ctx context.Context, tenantID string, input ExpenseInput) (*Expense, error)
	GetExpenses(ctx context.Context, tenantID string) ([]Expense, error)
	DeleteExpense(ctx context.Context, tenantID string, expenseID int) error
}

type expenseService struct {
	pool *pgxpool.Pool
}

func NewExpenseService(pool *pgxpool.Pool) ExpenseService {
	return &expenseService{pool: pool}
}

func (s *expenseService) CreateExpense(ctx context.Context, tenantID string, input ExpenseInput) (*Expense, error) {
	if input.Category == "" {
		return nil, validationf("category is required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, validationf("amount must be positive")
	}
	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	var e Expense
	err := s.pool.QueryRow(ctx, `
		INSERT INTO expenses (tenant_id, category, amount, description, expense_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, tenant_id, category, amount, description, expense_date, created_at
	`, tenantID, input.Category, input.Amount, input.Description, date).Scan(
		&e.ID, &e.TenantID, &e.Category, &e.Amount, &e.Description, &e.Date, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert expense: %w", err)
	}
	return &e, nil
}

func (s *expenseService) GetExpenses(ctx context.Context, tenantID string) ([]Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, category, amount, description, expense_date, created_at
		FROM expenses
		WHERE tenant_id = $1
		ORDER BY expense_date DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Category, &e.Amount, &e.Description, &e.Date, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *expenseService) DeleteExpense(ctx context.Context, tenantID string, expenseID int) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM expenses WHERE tenant_id = $1 AND id = $2",
		tenantID, expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense %d: %w", expenseID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundf("expense %d", expenseID)
	}
	return nil
}
