package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/store"
)

// categoryService handles category-related business logic.
type categoryService struct {
	ledger *store.Ledger
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(ledger *store.Ledger) CategoryServicer {
	return &categoryService{ledger: ledger}
}

func validCategoryType(t models.CategoryType) bool {
	return t == models.CategoryTypeIncome || t == models.CategoryTypeExpense
}

// CreateCategory creates a new category. Names are unique per user.
func (s *categoryService) CreateCategory(
	ctx context.Context,
	userID, name string,
	categoryType models.CategoryType,
	icon, color string,
	isDefault bool,
) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if !validCategoryType(categoryType) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must be INCOME or EXPENSE")
	}

	category := &models.Category{
		UserID:    userID,
		Name:      name,
		Type:      categoryType,
		Icon:      icon,
		Color:     color,
		IsDefault: isDefault,
	}
	if err := s.ledger.Categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// GetUserCategories returns a paginated list of categories for the user,
// optionally restricted to one type.
func (s *categoryService) GetUserCategories(
	ctx context.Context,
	userID string,
	page pagination.PageRequest,
	categoryType *models.CategoryType,
) (*pagination.PageResponse[models.Category], error) {
	where := []store.Filter{store.Eq("user_id", userID)}
	if categoryType != nil {
		where = append(where, store.Eq("type", *categoryType))
	}
	return findPage(ctx, s.ledger.Categories, store.And(where...), []store.Sort{{Field: "name"}}, page)
}

// GetCategoryByID returns a category by ID if it belongs to the user.
func (s *categoryService) GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error) {
	return findOwned(ctx, s.ledger.Categories, userID, categoryID)
}

// UpdateCategory updates a category. The type cannot change while any budget
// allocates to the category; the category lock keeps an allocation from being
// added between the check and the write.
func (s *categoryService) UpdateCategory(ctx context.Context, userID, categoryID string, update CategoryUpdate) (*models.Category, error) {
	unlock := categoryLocks.Lock(categoryID)
	defer unlock()

	var out *models.Category
	err := s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		category, err := findOwned(ctx, tx.Categories, userID, categoryID)
		if err != nil {
			return err
		}

		fields := make(map[string]any)
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if name == "" {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
			}
			fields["name"] = name
		}
		if update.Icon != nil {
			fields["icon"] = *update.Icon
		}
		if update.Color != nil {
			fields["color"] = *update.Color
		}
		if update.Type != nil && *update.Type != category.Type {
			if !validCategoryType(*update.Type) {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must be INCOME or EXPENSE")
			}
			n, err := tx.Allocations.Count(ctx, store.Eq("category_id", categoryID))
			if err != nil {
				return err
			}
			if n > 0 {
				return apperrors.Detailed(apperrors.ErrCategoryTypeLocked, "category", "type", "category_allocation.category_id")
			}
			fields["type"] = *update.Type
		}

		out, err = tx.Categories.Update(ctx, categoryID, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCategory deletes a category. Categories still referenced by
// transactions, bills or allocations are kept and DEPENDENCY_EXISTS is returned.
func (s *categoryService) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	if _, err := s.GetCategoryByID(ctx, userID, categoryID); err != nil {
		return err
	}
	return s.ledger.Categories.Delete(ctx, categoryID)
}

// ReassignCategory moves everything that references fromID onto toID and then
// deletes fromID. Allocations in a budget that already allocates to toID are
// merged into that allocation, so every budget's allocated total is unchanged.
func (s *categoryService) ReassignCategory(ctx context.Context, userID, fromID, toID string) error {
	if fromID == toID {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "cannot reassign a category to itself")
	}
	from, err := s.GetCategoryByID(ctx, userID, fromID)
	if err != nil {
		return err
	}
	to, err := s.GetCategoryByID(ctx, userID, toID)
	if err != nil {
		return err
	}
	if from.Type != to.Type {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "categories must have the same type to be merged")
	}

	moving, err := s.ledger.Allocations.FindMany(ctx, store.Query{Where: store.Eq("category_id", fromID)})
	if err != nil {
		return err
	}
	budgetIDs := make([]string, 0, len(moving))
	for _, a := range moving {
		budgetIDs = append(budgetIDs, a.BudgetID)
	}
	// Fixed lock order so two reassignments never deadlock.
	sort.Strings(budgetIDs)
	for _, id := range budgetIDs {
		unlock := budgetLocks.Lock(id)
		defer unlock()
	}
	categoryIDs := []string{fromID, toID}
	sort.Strings(categoryIDs)
	for _, id := range categoryIDs {
		unlock := categoryLocks.Lock(id)
		defer unlock()
	}

	return s.ledger.InTx(ctx, func(tx *store.Ledger) error {
		moveTo := map[string]any{"category_id": toID}
		if _, err := tx.Transactions.UpdateWhere(ctx, store.Eq("category_id", fromID), moveTo); err != nil {
			return err
		}
		if _, err := tx.Bills.UpdateWhere(ctx, store.Eq("category_id", fromID), moveTo); err != nil {
			return err
		}

		allocations, err := tx.Allocations.FindMany(ctx, store.Query{Where: store.Eq("category_id", fromID)})
		if err != nil {
			return err
		}
		for _, a := range allocations {
			budget, err := tx.Budgets.FindUnique(ctx, a.BudgetID)
			if err != nil {
				return err
			}

			target, err := tx.Allocations.FindFirst(ctx, store.And(
				store.Eq("budget_id", a.BudgetID),
				store.Eq("category_id", toID),
			))
			switch {
			case errors.Is(err, apperrors.ErrNotFound):
				if _, err := tx.Allocations.Update(ctx, a.ID, moveTo); err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if _, err := tx.Allocations.Update(ctx, target.ID, map[string]any{"amount": target.Amount + a.Amount}); err != nil {
					return err
				}
				if err := tx.Allocations.Delete(ctx, a.ID); err != nil {
					return err
				}
			}

			if err := bumpBudgetVersion(ctx, tx, a.BudgetID, budget.Version, nil); err != nil {
				return err
			}
		}

		return tx.Categories.Delete(ctx, fromID)
	})
}
