package services

import (
	"context"
	"time"

	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// PreferencesUpdate holds the user preferences to change. Nil fields are left as-is.
type PreferencesUpdate struct {
	Name               *string
	CurrencyCode       *string
	CurrencySymbol     *string
	SymbolPosition     *models.SymbolPosition
	DecimalPlaces      *int
	DecimalSeparator   *string
	ThousandsSeparator *string
	RoundingMode       *models.RoundingMode
	EmailNotifications *bool
	BillReminders      *bool
	BudgetAlerts       *bool
	Theme              *models.Theme
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(ctx context.Context, email, password, name string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(ctx context.Context, email, password string) (*models.User, error)
	UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// CategoryUpdate holds the category fields to change. Nil fields are left as-is.
type CategoryUpdate struct {
	Name  *string
	Type  *models.CategoryType
	Icon  *string
	Color *string
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(ctx context.Context, userID, name string, categoryType models.CategoryType, icon, color string, isDefault bool) (*models.Category, error)
	GetUserCategories(ctx context.Context, userID string, page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error)
	UpdateCategory(ctx context.Context, userID, categoryID string, update CategoryUpdate) (*models.Category, error)
	DeleteCategory(ctx context.Context, userID, categoryID string) error
	ReassignCategory(ctx context.Context, userID, fromID, toID string) error
}

// BudgetUpdate holds the budget fields to change. Nil fields are left as-is.
type BudgetUpdate struct {
	Name      *string
	Amount    *int64
	Timeframe *models.BudgetTimeframe
	StartDate *time.Time
	EndDate   *time.Time
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(ctx context.Context, userID, name string, amount int64, timeframe models.BudgetTimeframe, startDate, endDate time.Time) (*models.Budget, error)
	GetUserBudgets(ctx context.Context, userID string, page pagination.PageRequest, timeframe *models.BudgetTimeframe) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(ctx context.Context, userID, budgetID string) (*models.Budget, error)
	UpdateBudget(ctx context.Context, userID, budgetID string, update BudgetUpdate) (*models.Budget, error)
	DeleteBudget(ctx context.Context, userID, budgetID string) error
}

// AllocationServicer keeps a budget's category allocations within its amount.
type AllocationServicer interface {
	UpsertAllocation(ctx context.Context, budgetID, categoryID string, amount int64) (*models.CategoryAllocation, error)
	RemoveAllocation(ctx context.Context, budgetID, categoryID string) error
	TotalAllocated(ctx context.Context, budgetID string) (int64, error)
	ListAllocations(ctx context.Context, budgetID string) ([]models.CategoryAllocation, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	CategoryID *string
	BillID     *string
	MinAmount  *int64
	MaxAmount  *int64
	Search     string
}

// TransactionInput holds the fields of a new transaction.
type TransactionInput struct {
	CategoryID  string
	BillID      *string
	Type        models.TransactionType
	Amount      int64
	Description string
	Notes       string
	Date        time.Time
}

// TransactionUpdate holds the transaction fields to change. Nil fields are
// left as-is; ClearBill unlinks the bill.
type TransactionUpdate struct {
	CategoryID  *string
	BillID      *string
	ClearBill   bool
	Type        *models.TransactionType
	Amount      *int64
	Description *string
	Notes       *string
	Date        *time.Time
}

// Warning is a non-blocking finding attached to a successful write.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WarningDuplicateBillPayment flags a bill payment that would settle a due
// date past the next one.
const WarningDuplicateBillPayment = "DUPLICATE_BILL_PAYMENT"

// TransactionResult is a written transaction plus any warnings raised while writing it.
type TransactionResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Warnings    []Warning           `json:"warnings,omitempty"`
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, userID string, input TransactionInput) (*TransactionResult, error)
	GetUserTransactions(ctx context.Context, userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(ctx context.Context, userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID string, update TransactionUpdate) (*TransactionResult, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
}

// BillInput holds the fields of a new bill.
type BillInput struct {
	CategoryID string
	Name       string
	Amount     int64
	DueDate    time.Time
	Frequency  models.BillFrequency
	Autopay    bool
}

// BillUpdate holds the bill fields to change. Nil fields are left as-is.
type BillUpdate struct {
	CategoryID *string
	Name       *string
	Amount     *int64
	DueDate    *time.Time
	Frequency  *models.BillFrequency
	Autopay    *bool
}

// BillServicer defines the contract for bill-related business logic.
type BillServicer interface {
	CreateBill(ctx context.Context, userID string, input BillInput) (*models.Bill, error)
	GetUserBills(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Bill], error)
	GetBillByID(ctx context.Context, userID, billID string) (*models.Bill, error)
	UpdateBill(ctx context.Context, userID, billID string, update BillUpdate) (*models.Bill, error)
	DeleteBill(ctx context.Context, userID, billID string) error
	SweepOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// GoalUpdate holds the savings goal fields to change. Nil fields are left
// as-is. Completed is derived and cannot be set.
type GoalUpdate struct {
	Name          *string
	TargetAmount  *int64
	CurrentAmount *int64
	TargetDate    *time.Time
}

// SavingsGoalServicer defines the contract for savings-goal business logic.
type SavingsGoalServicer interface {
	CreateGoal(ctx context.Context, userID, name string, targetAmount, currentAmount int64, targetDate *time.Time) (*models.SavingsGoal, error)
	GetUserGoals(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.SavingsGoal], error)
	GetGoalByID(ctx context.Context, userID, goalID string) (*models.SavingsGoal, error)
	UpdateGoal(ctx context.Context, userID, goalID string, update GoalUpdate) (*models.SavingsGoal, error)
	Contribute(ctx context.Context, userID, goalID string, delta int64) (*models.SavingsGoal, error)
	DeleteGoal(ctx context.Context, userID, goalID string) error
}

// AllocationUsage is one line of a budget utilization report.
type AllocationUsage struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Allocated    int64  `json:"allocated"`
	Spent        int64  `json:"spent"`
	Remaining    int64  `json:"remaining"`
}

// BudgetUtilization compares a budget's allocations with actual spending in
// its period. Remaining may be negative when a category is over budget.
type BudgetUtilization struct {
	BudgetID    string            `json:"budget_id"`
	Amount      int64             `json:"amount"`
	Allocated   int64             `json:"allocated"`
	Unallocated int64             `json:"unallocated"`
	Spent       int64             `json:"spent"`
	Remaining   int64             `json:"remaining"`
	Categories  []AllocationUsage `json:"categories"`
}

// BillStatusView is the derived state of a bill at a point in time.
type BillStatusView struct {
	BillID     string            `json:"bill_id"`
	Status     models.BillStatus `json:"status"`
	DueDate    time.Time         `json:"due_date"`
	CycleStart time.Time         `json:"cycle_start"`
	Payments   int               `json:"payments"`
	AsOf       time.Time         `json:"as_of"`
}

// SavingsProgress is a goal's completion ratio, always within [0, 1].
type SavingsProgress struct {
	GoalID        string  `json:"goal_id"`
	CurrentAmount int64   `json:"current_amount"`
	TargetAmount  int64   `json:"target_amount"`
	Progress      float64 `json:"progress"`
	Completed     bool    `json:"completed"`
}

// CategorySpending is the expense total for one category.
type CategorySpending struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Count        int64  `json:"count"`
	Total        int64  `json:"total"`
}

// TransactionStats summarizes the amounts of a set of transactions.
type TransactionStats struct {
	Count int64   `json:"count"`
	Sum   int64   `json:"sum"`
	Avg   float64 `json:"avg"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
}

// Overview is a user's dashboard as of a point in time.
type Overview struct {
	AsOf    time.Time           `json:"as_of"`
	Budgets []BudgetUtilization `json:"budgets"`
	Bills   []BillStatusView    `json:"bills"`
	Goals   []SavingsProgress   `json:"goals"`
}

// ProjectionServicer computes read-only views from the ledger.
type ProjectionServicer interface {
	CategorySpent(ctx context.Context, userID, categoryID string, periodStart, periodEnd time.Time) (int64, error)
	BudgetUtilization(ctx context.Context, budgetID string) (*BudgetUtilization, error)
	BillStatus(ctx context.Context, billID string, asOf time.Time) (*BillStatusView, error)
	SavingsProgress(ctx context.Context, goalID string) (*SavingsProgress, error)
	SpendingByCategory(ctx context.Context, userID string, from, to time.Time) ([]CategorySpending, error)
	TransactionStats(ctx context.Context, userID string, filter TransactionFilter) (*TransactionStats, error)
	Overview(ctx context.Context, userID string, asOf time.Time) (*Overview, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
	GetUserAuditLogs(ctx context.Context, userID, resourceType string, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}
