package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// BillHandler handles bill-related requests.
type BillHandler struct {
	billService       services.BillServicer
	projectionService services.ProjectionServicer
	auditService      services.AuditServicer
	now               func() time.Time
}

// NewBillHandler creates a new BillHandler.
func NewBillHandler(
	billService services.BillServicer,
	projectionService services.ProjectionServicer,
	auditService services.AuditServicer,
) *BillHandler {
	return &BillHandler{
		billService:       billService,
		projectionService: projectionService,
		auditService:      auditService,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// CreateBillRequest represents the request payload for creating a bill.
type CreateBillRequest struct {
	CategoryID string               `json:"category_id" binding:"required,uuid"`
	Name       string               `json:"name" binding:"required,min=1,max=100"`
	Amount     int64                `json:"amount" binding:"required"`
	DueDate    string               `json:"due_date" binding:"required"`
	Frequency  models.BillFrequency `json:"frequency" binding:"required,bill_frequency"`
	Autopay    bool                 `json:"autopay"`
}

// UpdateBillRequest represents the request payload for updating a bill.
type UpdateBillRequest struct {
	CategoryID *string               `json:"category_id" binding:"omitempty,uuid"`
	Name       *string               `json:"name" binding:"omitempty,min=1,max=100"`
	Amount     *int64                `json:"amount"`
	DueDate    *string               `json:"due_date"`
	Frequency  *models.BillFrequency `json:"frequency" binding:"omitempty,bill_frequency"`
	Autopay    *bool                 `json:"autopay"`
}

// CreateBill handles the creation of a new bill.
// @Summary     Create a bill
// @Description Create a recurring bill anchored at due_date
// @Tags        bills
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBillRequest true "Bill details"
// @Success     201 {object} models.Bill "Bill created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Unknown category"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /bills [post]
func (h *BillHandler) CreateBill(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	dueDate, err := parseFlexibleTime(req.DueDate)
	if err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	bill, err := h.billService.CreateBill(c.Request.Context(), userID, services.BillInput{
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Amount:     req.Amount,
		DueDate:    dueDate,
		Frequency:  req.Frequency,
		Autopay:    req.Autopay,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "CREATE_BILL", "bill", bill.ID, c.ClientIP(),
		map[string]any{"name": req.Name, "amount": req.Amount, "frequency": req.Frequency})

	c.JSON(http.StatusCreated, gin.H{"bill": bill})
}

// GetBills handles listing bills for the authenticated user.
// @Summary     Get bills
// @Tags        bills
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Bill] "Paginated bills"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /bills [get]
func (h *BillHandler) GetBills(c *gin.Context) {
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

	result, err := h.billService.GetUserBills(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBill handles fetching a single bill.
// @Summary     Get bill by ID
// @Tags        bills
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Bill ID"
// @Success     200 {object} models.Bill "Bill"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Bill not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /bills/{id} [get]
func (h *BillHandler) GetBill(c *gin.Context) {
	bill, ok := h.ownedBill(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"bill": bill})
}

// UpdateBill handles updating a bill.
// @Summary     Update bill
// @Tags        bills
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Bill ID"
// @Param       request body UpdateBillRequest true "Fields to change"
// @Success     200 {object} models.Bill "Bill updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Bill not found"
// @Failure     409 {object} ErrorResponse "Unknown category"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /bills/{id} [put]
func (h *BillHandler) UpdateBill(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	billID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	update := services.BillUpdate{
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Amount:     req.Amount,
		Frequency:  req.Frequency,
		Autopay:    req.Autopay,
	}
	if update.DueDate, err = parseOptionalTime(req.DueDate); err != nil {
		respondWithError(c, err)
		return
	}

	bill, err := h.billService.UpdateBill(c.Request.Context(), userID, billID, update)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "UPDATE_BILL", "bill", billID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"bill": bill})
}

// DeleteBill handles deleting a bill. Its payments stay as plain transactions.
// @Summary     Delete bill
// @Tags        bills
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Bill ID"
// @Success     200 {object} MessageResponse "Bill deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Bill not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /bills/{id} [delete]
func (h *BillHandler) DeleteBill(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	billID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.billService.DeleteBill(c.Request.Context(), userID, billID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "DELETE_BILL", "bill", billID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Bill deleted successfully"})
}

// GetBillStatus derives a bill's status at a point in time.
// @Summary     Get bill status
// @Description UPCOMING, OVERDUE or PAID as of the given time (default now)
// @Tags        bills
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Bill ID"
// @Param       as_of query string false "Evaluation time (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} services.BillStatusView "Bill status"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Bill not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /bills/{id}/status [get]
func (h *BillHandler) GetBillStatus(c *gin.Context) {
	bill, ok := h.ownedBill(c)
	if !ok {
		return
	}

	asOf, err := parseQueryTime(c, "as_of", h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	status, err := h.projectionService.BillStatus(c.Request.Context(), bill.ID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

// SweepOverdue publishes an overdue notice for every bill past due.
// @Summary     Sweep overdue bills
// @Description Internal job endpoint, protected by X-API-Key
// @Tags        internal
// @Produce     json
// @Security    ApiKeyAuth
// @Param       as_of query string false "Evaluation time (default now)"
// @Success     200 {object} map[string]interface{} "Number of overdue bills"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /internal/bills/sweep [post]
func (h *BillHandler) SweepOverdue(c *gin.Context) {
	asOf, err := parseQueryTime(c, "as_of", h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	overdue, err := h.billService.SweepOverdue(c.Request.Context(), asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"overdue": overdue, "as_of": asOf})
}

// ownedBill loads the caller's bill named by the id path parameter.
func (h *BillHandler) ownedBill(c *gin.Context) (*models.Bill, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}

	billID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}

	bill, err := h.billService.GetBillByID(c.Request.Context(), userID, billID)
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}
	return bill, true
}
