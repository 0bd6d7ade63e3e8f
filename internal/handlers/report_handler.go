package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fintrack/internal/money"
	"fintrack/internal/services"
)

// ReportHandler serves read-only reports across the ledger.
type ReportHandler struct {
	projectionService services.ProjectionServicer
	userService       services.UserServicer
	now               func() time.Time
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(projectionService services.ProjectionServicer, userService services.UserServicer) *ReportHandler {
	return &ReportHandler{
		projectionService: projectionService,
		userService:       userService,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SpendingLine is one category of the spending report with its display amount.
type SpendingLine struct {
	services.CategorySpending
	Formatted string `json:"formatted"`
}

// SpendingReport is the response of the spending report.
type SpendingReport struct {
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	Total          int64          `json:"total"`
	TotalFormatted string         `json:"total_formatted"`
	Categories     []SpendingLine `json:"categories"`
}

// GetSpending totals expenses per category over [from, to).
// @Summary     Spending by category
// @Description Expense totals per category, largest first, formatted in the user's currency. Defaults to the current month.
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       from query string false "Start, inclusive (RFC3339 or YYYY-MM-DD)"
// @Param       to   query string false "End, exclusive (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} SpendingReport "Spending report"
// @Failure     400 {object} ErrorResponse "Invalid date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/spending [get]
func (h *ReportHandler) GetSpending(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	now := h.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	from, err := parseQueryTime(c, "from", monthStart)
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := parseQueryTime(c, "to", monthStart.AddDate(0, 1, 0))
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	spending, err := h.projectionService.SpendingByCategory(c.Request.Context(), userID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	report := SpendingReport{From: from, To: to, Categories: make([]SpendingLine, len(spending))}
	for i, s := range spending {
		report.Total += s.Total
		report.Categories[i] = SpendingLine{CategorySpending: s, Formatted: money.Format(s.Total, user.CurrencyFormat)}
	}
	report.TotalFormatted = money.Format(report.Total, user.CurrencyFormat)

	c.JSON(http.StatusOK, report)
}

// GetOverview returns the dashboard of budgets, bills and goals.
// @Summary     Overview
// @Description Utilization of active budgets, status of every bill and progress of every goal
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       as_of query string false "Evaluation time (default now)"
// @Success     200 {object} services.Overview "Overview"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/overview [get]
func (h *ReportHandler) GetOverview(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf, err := parseQueryTime(c, "as_of", h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	overview, err := h.projectionService.Overview(c.Request.Context(), userID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"overview": overview})
}
