package services

import (
	"context"

	"fintrack/internal/pagination"
	"fintrack/internal/store"
)

// findOwned returns the row with id if it belongs to userID. Rows of other
// users are reported as not found.
func findOwned[T any](ctx context.Context, repo store.Repository[T], userID, id string) (*T, error) {
	return repo.FindFirst(ctx, store.And(store.Eq("id", id), store.Eq("user_id", userID)))
}

// findPage reads one page of rows matching where.
func findPage[T any](ctx context.Context, repo store.Repository[T], where store.Filter, order []store.Sort, page pagination.PageRequest) (*pagination.PageResponse[T], error) {
	page.Defaults()

	total, err := repo.Count(ctx, where)
	if err != nil {
		return nil, err
	}
	rows, err := repo.FindMany(ctx, store.Query{
		Where:   where,
		OrderBy: order,
		Skip:    page.Skip(),
		Take:    page.Take(),
	})
	if err != nil {
		return nil, err
	}

	result := pagination.NewPageResponse(rows, page.Page, page.PageSize, total)
	return &result, nil
}
