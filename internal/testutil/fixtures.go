package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Date returns midnight UTC on the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:              email,
		Password:           string(hash),
		Name:               "Test User",
		CurrencyFormat:     models.DefaultCurrencyFormat(),
		EmailNotifications: true,
		BillReminders:      true,
		BudgetAlerts:       true,
		Theme:              models.ThemeSystem,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
		Color:  "#336699",
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestBudget creates a monthly budget covering January 2025.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string, amount int64) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		UserID:    userID,
		Name:      fmt.Sprintf("Test Budget %d", nextID()),
		Amount:    amount,
		StartDate: Date(2025, time.January, 1),
		EndDate:   Date(2025, time.February, 1),
		Timeframe: models.BudgetTimeframeMonthly,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestAllocation assigns amount of a budget to a category.
func CreateTestAllocation(t *testing.T, db *gorm.DB, budgetID, categoryID string, amount int64) *models.CategoryAllocation {
	t.Helper()

	alloc := &models.CategoryAllocation{
		BudgetID:   budgetID,
		CategoryID: categoryID,
		Amount:     amount,
	}
	if err := db.Create(alloc).Error; err != nil {
		t.Fatalf("failed to create test allocation: %v", err)
	}
	return alloc
}

// CreateTestTransaction creates a transaction of the given type and amount (in cents).
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, categoryID string, txType models.TransactionType, amount int64, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:     userID,
		CategoryID: categoryID,
		Type:       txType,
		Amount:     amount,
		Date:       date,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestBillPayment creates an expense transaction linked to a bill.
func CreateTestBillPayment(t *testing.T, db *gorm.DB, bill *models.Bill, date time.Time) *models.Transaction {
	t.Helper()

	billID := bill.ID
	tx := &models.Transaction{
		UserID:     bill.UserID,
		CategoryID: bill.CategoryID,
		BillID:     &billID,
		Type:       models.TransactionTypeExpense,
		Amount:     bill.Amount,
		Date:       date,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test bill payment: %v", err)
	}
	return tx
}

// CreateTestBill creates a bill with the given anchor due date and frequency.
func CreateTestBill(t *testing.T, db *gorm.DB, userID, categoryID string, dueDate time.Time, freq models.BillFrequency) *models.Bill {
	t.Helper()

	bill := &models.Bill{
		UserID:     userID,
		CategoryID: categoryID,
		Name:       fmt.Sprintf("Test Bill %d", nextID()),
		Amount:     5000,
		DueDate:    dueDate,
		Frequency:  freq,
	}
	if err := db.Create(bill).Error; err != nil {
		t.Fatalf("failed to create test bill: %v", err)
	}
	return bill
}

// CreateTestGoal creates a savings goal with the given amounts.
func CreateTestGoal(t *testing.T, db *gorm.DB, userID string, target, current int64) *models.SavingsGoal {
	t.Helper()

	goal := &models.SavingsGoal{
		UserID:        userID,
		Name:          fmt.Sprintf("Test Goal %d", nextID()),
		TargetAmount:  target,
		CurrentAmount: current,
		Completed:     models.IsComplete(current, target),
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}
