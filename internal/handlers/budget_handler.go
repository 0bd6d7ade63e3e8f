package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// BudgetHandler handles budget, allocation and utilization requests.
type BudgetHandler struct {
	budgetService     services.BudgetServicer
	allocationService services.AllocationServicer
	projectionService services.ProjectionServicer
	auditService      services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(
	budgetService services.BudgetServicer,
	allocationService services.AllocationServicer,
	projectionService services.ProjectionServicer,
	auditService services.AuditServicer,
) *BudgetHandler {
	return &BudgetHandler{
		budgetService:     budgetService,
		allocationService: allocationService,
		projectionService: projectionService,
		auditService:      auditService,
	}
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	Name      string                 `json:"name" binding:"required,min=1,max=100"`
	Amount    int64                  `json:"amount" binding:"gte=0"`
	Timeframe models.BudgetTimeframe `json:"timeframe" binding:"required,budget_timeframe"`
	StartDate string                 `json:"start_date" binding:"required"`
	EndDate   string                 `json:"end_date" binding:"required"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	Name      *string                 `json:"name" binding:"omitempty,min=1,max=100"`
	Amount    *int64                  `json:"amount" binding:"omitempty,gte=0"`
	Timeframe *models.BudgetTimeframe `json:"timeframe" binding:"omitempty,budget_timeframe"`
	StartDate *string                 `json:"start_date"`
	EndDate   *string                 `json:"end_date"`
}

// UpsertAllocationRequest sets the amount a budget assigns to a category.
type UpsertAllocationRequest struct {
	Amount *int64 `json:"amount" binding:"required"`
}

// CreateBudget handles the creation of a new budget.
// @Summary     Create a budget
// @Description Create a new budget over [start_date, end_date)
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.Budget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	startDate, err := parseFlexibleTime(req.StartDate)
	if err != nil {
		respondWithError(c, invalidInput(err))
		return
	}
	endDate, err := parseFlexibleTime(req.EndDate)
	if err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	budget, err := h.budgetService.CreateBudget(c.Request.Context(), userID, req.Name, req.Amount, req.Timeframe, startDate, endDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "CREATE_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]any{"name": req.Name, "amount": req.Amount, "timeframe": req.Timeframe})

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// GetBudgets handles listing budgets for the authenticated user.
// @Summary     Get budgets
// @Description Get a paginated list of budgets for the authenticated user
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       timeframe query string false "Filter by timeframe (WEEKLY/MONTHLY/YEARLY)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Budget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	var timeframe *models.BudgetTimeframe
	if v := c.Query("timeframe"); v != "" {
		tf := models.BudgetTimeframe(v)
		switch tf {
		case models.BudgetTimeframeWeekly, models.BudgetTimeframeMonthly, models.BudgetTimeframeYearly:
			timeframe = &tf
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "timeframe must be WEEKLY, MONTHLY or YEARLY"))
			return
		}
	}

	result, err := h.budgetService.GetUserBudgets(c.Request.Context(), userID, page, timeframe)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBudget handles fetching a single budget.
// @Summary     Get budget by ID
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} models.Budget "Budget"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	budget, ok := h.ownedBudget(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// UpdateBudget handles updating an existing budget.
// @Summary     Update budget
// @Description Update a budget. The amount cannot drop below what is already allocated.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Budget ID"
// @Param       request body UpdateBudgetRequest true "Fields to change"
// @Success     200 {object} models.Budget "Budget updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Concurrent change"
// @Failure     422 {object} ErrorResponse "Amount below allocations"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	update := services.BudgetUpdate{Name: req.Name, Amount: req.Amount, Timeframe: req.Timeframe}
	if update.StartDate, err = parseOptionalTime(req.StartDate); err != nil {
		respondWithError(c, err)
		return
	}
	if update.EndDate, err = parseOptionalTime(req.EndDate); err != nil {
		respondWithError(c, err)
		return
	}

	var budget *models.Budget
	err = withConflictRetry(func() error {
		var updateErr error
		budget, updateErr = h.budgetService.UpdateBudget(c.Request.Context(), userID, budgetID, update)
		return updateErr
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "UPDATE_BUDGET", "budget", budgetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// DeleteBudget handles deleting a budget and its allocations.
// @Summary     Delete budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} MessageResponse "Budget deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteBudget(c.Request.Context(), userID, budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "DELETE_BUDGET", "budget", budgetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Budget deleted successfully"})
}

// GetAllocations lists a budget's category allocations.
// @Summary     Get budget allocations
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} map[string]interface{} "Allocations and their total"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/allocations [get]
func (h *BudgetHandler) GetAllocations(c *gin.Context) {
	budget, ok := h.ownedBudget(c)
	if !ok {
		return
	}

	allocations, err := h.allocationService.ListAllocations(c.Request.Context(), budget.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	total, err := h.allocationService.TotalAllocated(c.Request.Context(), budget.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"allocations":     allocations,
		"total_allocated": total,
		"unallocated":     budget.Amount - total,
	})
}

// UpsertAllocation sets how much of a budget goes to a category.
// @Summary     Set category allocation
// @Description Create or replace the allocation of a budget to a category
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string                  true "Budget ID"
// @Param       categoryId path string                  true "Category ID"
// @Param       request    body UpsertAllocationRequest true "Allocation amount"
// @Success     200 {object} models.CategoryAllocation "Allocation saved"
// @Failure     400 {object} ErrorResponse "Invalid amount or category mismatch"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Concurrent change or unknown category"
// @Failure     422 {object} ErrorResponse "Allocations would exceed the budget"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/allocations/{categoryId} [put]
func (h *BudgetHandler) UpsertAllocation(c *gin.Context) {
	budget, ok := h.ownedBudget(c)
	if !ok {
		return
	}

	categoryID, err := parsePathID(c, "categoryId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpsertAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	var allocation *models.CategoryAllocation
	err = withConflictRetry(func() error {
		var upsertErr error
		allocation, upsertErr = h.allocationService.UpsertAllocation(c.Request.Context(), budget.ID, categoryID, *req.Amount)
		return upsertErr
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), budget.UserID, "UPSERT_ALLOCATION", "budget", budget.ID, c.ClientIP(),
		map[string]any{"category_id": categoryID, "amount": *req.Amount})

	c.JSON(http.StatusOK, gin.H{"allocation": allocation})
}

// RemoveAllocation deletes a budget's allocation to a category.
// @Summary     Remove category allocation
// @Description Remove an allocation. Removing a missing allocation succeeds.
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string true "Budget ID"
// @Param       categoryId path string true "Category ID"
// @Success     200 {object} MessageResponse "Allocation removed"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Concurrent change"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/allocations/{categoryId} [delete]
func (h *BudgetHandler) RemoveAllocation(c *gin.Context) {
	budget, ok := h.ownedBudget(c)
	if !ok {
		return
	}

	categoryID, err := parsePathID(c, "categoryId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	err = withConflictRetry(func() error {
		return h.allocationService.RemoveAllocation(c.Request.Context(), budget.ID, categoryID)
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), budget.UserID, "REMOVE_ALLOCATION", "budget", budget.ID, c.ClientIP(),
		map[string]any{"category_id": categoryID})

	c.JSON(http.StatusOK, gin.H{"message": "Allocation removed successfully"})
}

// GetUtilization compares a budget's allocations with actual spending.
// @Summary     Get budget utilization
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} services.BudgetUtilization "Utilization"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/utilization [get]
func (h *BudgetHandler) GetUtilization(c *gin.Context) {
	budget, ok := h.ownedBudget(c)
	if !ok {
		return
	}

	utilization, err := h.projectionService.BudgetUtilization(c.Request.Context(), budget.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"utilization": utilization})
}

// ownedBudget loads the budget named by the id path parameter, writing the
// error response itself when the budget is missing or not the caller's.
func (h *BudgetHandler) ownedBudget(c *gin.Context) (*models.Budget, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}

	budget, err := h.budgetService.GetBudgetByID(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}
	return budget, true
}
