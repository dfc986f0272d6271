package handler

import (
	"github.com/gin-gonic/gin"
	financeapp "github.com/schoolerp/backend/internal/application/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// FinanceHandler serves references, transactions, the daily ledger, student
// balances and treasury analysis
type FinanceHandler struct {
	BaseHandler
	issuer       *financeapp.ReferenceIssuer
	transactions *financeapp.TransactionService
	ledger       *financeapp.LedgerService
	treasury     *financeapp.TreasuryService
}

// NewFinanceHandler creates a new FinanceHandler
func NewFinanceHandler(
	issuer *financeapp.ReferenceIssuer,
	transactions *financeapp.TransactionService,
	ledger *financeapp.LedgerService,
	treasury *financeapp.TreasuryService,
) *FinanceHandler {
	return &FinanceHandler{
		issuer:       issuer,
		transactions: transactions,
		ledger:       ledger,
		treasury:     treasury,
	}
}

// IssueReference godoc
// @Summary      Issue a receipt reference
// @Description  Reserves the next ordinal of the (year, class, kind) sequence. When the sequence cannot be reserved a timestamp fallback reference is returned with sequential=false.
// @Tags         finance-references
// @Accept       json
// @Produce      json
// @Param        X-School-ID header string true "School ID" format(uuid)
// @Param        X-Academic-Year header string true "Academic year" example(2025-2026)
// @Success      201 {object} dto.Response{data=financeapp.IssueReferenceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /finance/references [post]
func (h *FinanceHandler) IssueReference(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}

	var req financeapp.IssueReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.issuer.IssueReference(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListNonSequential godoc
// @Summary      List revenues with fallback references
// @Tags         finance-references
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]financeapp.RevenueResponse,meta=dto.Meta}
// @Router       /finance/references/non-sequential [get]
func (h *FinanceHandler) ListNonSequential(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.transactions.ListNonSequential(c.Request.Context(), scope, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// RecordRevenue godoc
// @Summary      Record a revenue
// @Description  Stores a revenue with a freshly issued reference. Fee revenues return the student's updated balance.
// @Tags         finance-transactions
// @Accept       json
// @Produce      json
// @Success      201 {object} dto.Response{data=financeapp.RevenueResponse}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /finance/revenues [post]
func (h *FinanceHandler) RecordRevenue(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}

	var req financeapp.RecordRevenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.transactions.RecordRevenue(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// RecordExpense records an expense
func (h *FinanceHandler) RecordExpense(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}

	var req financeapp.RecordExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.transactions.RecordExpense(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ChangeRevenueStatus moves a revenue to another status. Revenues of a
// validated day are locked.
func (h *FinanceHandler) ChangeRevenueStatus(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "revenue")
	if !ok {
		return
	}

	var req financeapp.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.transactions.ChangeRevenueStatus(c.Request.Context(), scope, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ChangeExpenseStatus moves an expense to another status
func (h *FinanceHandler) ChangeExpenseStatus(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "expense")
	if !ok {
		return
	}

	var req financeapp.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.transactions.ChangeExpenseStatus(c.Request.Context(), scope, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetDailyLedger godoc
// @Summary      Aggregate a day
// @Description  Totals the revenues and expenses of one calendar day, excluding cancelled and rejected transactions
// @Tags         finance-ledger
// @Produce      json
// @Param        date query string true "Day (YYYY-MM-DD)" format(date)
// @Success      200 {object} dto.Response{data=finance.DailyLedger}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /finance/ledger/daily [get]
func (h *FinanceHandler) GetDailyLedger(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}

	date := c.Query("date")
	if date == "" {
		h.BadRequest(c, "date query parameter is required")
		return
	}

	ledger, err := h.ledger.Aggregate(c.Request.Context(), scope, date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ledger)
}

// GetStudentBalance returns expected, paid and remaining fees of a student
func (h *FinanceHandler) GetStudentBalance(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "student")
	if !ok {
		return
	}

	balance, err := h.transactions.GetStudentBalance(c.Request.Context(), scope, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// ComputeWorkingCapital godoc
// @Summary      Compute the working-capital snapshot
// @Description  Missing inputs are read from treasury accounts; missing revenue and expense totals are aggregated over the period.
// @Tags         finance-treasury
// @Accept       json
// @Produce      json
// @Success      200 {object} dto.Response{data=finance.WorkingCapitalSnapshot}
// @Router       /finance/treasury/working-capital [post]
func (h *FinanceHandler) ComputeWorkingCapital(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}

	var req financeapp.WorkingCapitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	snapshot, err := h.treasury.ComputeWorkingCapital(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}

// toFilter keeps the repository's default ordering unless the client asks
// for one
func toFilter(req dto.ListRequest) shared.Filter {
	defaults := shared.DefaultFilter()
	filter := shared.Filter{Page: defaults.Page, PageSize: defaults.PageSize}
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	return filter
}

// queryDecimal reads an optional decimal query parameter; absent means zero
func queryDecimal(c *gin.Context, name string) (decimal.Decimal, bool) {
	raw := c.Query(name)
	if raw == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
