package store

import (
	"context"

	"fintrack/internal/models"
)

// Ledger bundles the typed repositories for every ledger entity, wired with
// their foreign keys, unique keys and delete policies.
type Ledger struct {
	*Store

	Users        Repository[models.User]
	Categories   Repository[models.Category]
	Budgets      Repository[models.Budget]
	Allocations  Repository[models.CategoryAllocation]
	Transactions Repository[models.Transaction]
	Bills        Repository[models.Bill]
	Goals        Repository[models.SavingsGoal]
	AuditLogs    Repository[models.AuditLog]
}

func optionalID(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

// NewLedger wires the repositories over s.
func NewLedger(s *Store) *Ledger {
	allocations := Repository[models.CategoryAllocation]{
		store: s, entity: "category_allocation", table: "category_allocations",
		refs: func(a *models.CategoryAllocation) []ref {
			return []ref{
				{field: "budget_id", entity: "budget", table: "budgets", id: a.BudgetID},
				{field: "category_id", entity: "category", table: "categories", id: a.CategoryID},
			}
		},
		uniques: func(a *models.CategoryAllocation) []uniqueKey {
			return []uniqueKey{{fields: []string{"budget_id", "category_id"}, values: []any{a.BudgetID, a.CategoryID}}}
		},
	}

	transactions := Repository[models.Transaction]{
		store: s, entity: "transaction", table: "transactions",
		refs: func(t *models.Transaction) []ref {
			return []ref{
				{field: "user_id", entity: "user", table: "users", id: t.UserID},
				{field: "category_id", entity: "category", table: "categories", id: t.CategoryID},
				{field: "bill_id", entity: "bill", table: "bills", id: optionalID(t.BillID), optional: true},
			}
		},
	}

	bills := Repository[models.Bill]{
		store: s, entity: "bill", table: "bills",
		refs: func(b *models.Bill) []ref {
			return []ref{
				{field: "user_id", entity: "user", table: "users", id: b.UserID},
				{field: "category_id", entity: "category", table: "categories", id: b.CategoryID},
			}
		},
		dependents: []dependent{
			{entity: "transaction", column: "bill_id", policy: Detach, child: transactions},
		},
	}

	budgets := Repository[models.Budget]{
		store: s, entity: "budget", table: "budgets",
		refs: func(b *models.Budget) []ref {
			return []ref{{field: "user_id", entity: "user", table: "users", id: b.UserID}}
		},
		dependents: []dependent{
			{entity: "category_allocation", column: "budget_id", policy: Cascade, child: allocations},
		},
	}

	categories := Repository[models.Category]{
		store: s, entity: "category", table: "categories",
		refs: func(c *models.Category) []ref {
			return []ref{{field: "user_id", entity: "user", table: "users", id: c.UserID}}
		},
		uniques: func(c *models.Category) []uniqueKey {
			return []uniqueKey{{fields: []string{"user_id", "name"}, values: []any{c.UserID, c.Name}}}
		},
		dependents: []dependent{
			{entity: "transaction", column: "category_id", policy: Restrict, child: transactions},
			{entity: "bill", column: "category_id", policy: Restrict, child: bills},
			{entity: "category_allocation", column: "category_id", policy: Restrict, child: allocations},
		},
	}

	goals := Repository[models.SavingsGoal]{
		store: s, entity: "savings_goal", table: "savings_goals",
		refs: func(g *models.SavingsGoal) []ref {
			return []ref{{field: "user_id", entity: "user", table: "users", id: g.UserID}}
		},
	}

	auditLogs := Repository[models.AuditLog]{
		store: s, entity: "audit_log", table: "audit_logs",
	}

	users := Repository[models.User]{
		store: s, entity: "user", table: "users",
		uniques: func(u *models.User) []uniqueKey {
			return []uniqueKey{{fields: []string{"email"}, values: []any{u.Email}}}
		},
		// Order matters: transactions go before the bills and categories they
		// reference, and allocations go with their budgets before categories.
		dependents: []dependent{
			{entity: "transaction", column: "user_id", policy: Cascade, child: transactions},
			{entity: "bill", column: "user_id", policy: Cascade, child: bills},
			{entity: "budget", column: "user_id", policy: Cascade, child: budgets},
			{entity: "category", column: "user_id", policy: Cascade, child: categories},
			{entity: "savings_goal", column: "user_id", policy: Cascade, child: goals},
			{entity: "audit_log", column: "user_id", policy: Cascade, child: auditLogs},
		},
	}

	return &Ledger{
		Store:        s,
		Users:        users,
		Categories:   categories,
		Budgets:      budgets,
		Allocations:  allocations,
		Transactions: transactions,
		Bills:        bills,
		Goals:        goals,
		AuditLogs:    auditLogs,
	}
}

// bind returns a copy of the ledger whose repositories all run on s.
func (l *Ledger) bind(s *Store) *Ledger {
	return &Ledger{
		Store:        s,
		Users:        l.Users.on(s),
		Categories:   l.Categories.on(s),
		Budgets:      l.Budgets.on(s),
		Allocations:  l.Allocations.on(s),
		Transactions: l.Transactions.on(s),
		Bills:        l.Bills.on(s),
		Goals:        l.Goals.on(s),
		AuditLogs:    l.AuditLogs.on(s),
	}
}

// InTx runs fn with a ledger bound to a single transaction.
func (l *Ledger) InTx(ctx context.Context, fn func(tx *Ledger) error) error {
	return l.Store.WithTransaction(ctx, func(tx *Store) error {
		return fn(l.bind(tx))
	})
}
