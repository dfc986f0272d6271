package handler

import (
	"github.com/gin-gonic/gin"
	financeapp "github.com/schoolerp/backend/internal/application/finance"
)

// ClosureHandler serves variance computation and the daily closure lifecycle
type ClosureHandler struct {
	BaseHandler
	closures *financeapp.ClosureService
}

// NewClosureHandler creates a new ClosureHandler
func NewClosureHandler(closures *financeapp.ClosureService) *ClosureHandler {
	return &ClosureHandler{closures: closures}
}

// ComputeVariance godoc
// @Summary      Compute a cash variance
// @Description  Pure reconciliation arithmetic: expected = opening + net, variance = current - expected
// @Tags         finance-closures
// @Accept       json
// @Produce      json
// @Success      200 {object} dto.Response{data=finance.Reconciliation}
// @Router       /finance/variance [post]
func (h *ClosureHandler) ComputeVariance(c *gin.Context) {
	var req financeapp.VarianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.Success(c, h.closures.ComputeVariance(req))
}

// Preview godoc
// @Summary      Preview the closure of a day
// @Description  Aggregates the day and reconciles it with the cash figures given as query parameters
// @Tags         finance-closures
// @Produce      json
// @Param        date query string true "Day (YYYY-MM-DD)" format(date)
// @Param        opening_cash query string false "Opening cash"
// @Param        current_cash query string false "Counted cash"
// @Success      200 {object} dto.Response{data=financeapp.ClosurePreview}
// @Router       /finance/closures/preview [get]
func (h *ClosureHandler) Preview(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}

	date := c.Query("date")
	if date == "" {
		h.BadRequest(c, "date query parameter is required")
		return
	}
	opening, ok := queryDecimal(c, "opening_cash")
	if !ok {
		h.BadRequest(c, "opening_cash must be a decimal")
		return
	}
	current, ok := queryDecimal(c, "current_cash")
	if !ok {
		h.BadRequest(c, "current_cash must be a decimal")
		return
	}

	preview, err := h.closures.Preview(c.Request.Context(), scope, date, opening, current)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// Create opens a draft closure
func (h *ClosureHandler) Create(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}

	var req financeapp.CreateClosureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	closure, err := h.closures.Create(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, closure)
}

// List lists the closures of the scope
func (h *ClosureHandler) List(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}

	var filter financeapp.ClosureListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.closures.List(c.Request.Context(), scope, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Get returns one closure
func (h *ClosureHandler) Get(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "closure")
	if !ok {
		return
	}

	closure, err := h.closures.Get(c.Request.Context(), scope, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, closure)
}

// Update edits the cash figures or notes of a draft closure
func (h *ClosureHandler) Update(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "closure")
	if !ok {
		return
	}

	var req financeapp.UpdateClosureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	closure, err := h.closures.Update(c.Request.Context(), scope, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, closure)
}

// RecordJustification godoc
// @Summary      Justify the variance of a draft closure
// @Tags         finance-closures
// @Accept       json
// @Produce      json
// @Param        id path string true "Closure ID" format(uuid)
// @Success      200 {object} dto.Response{data=financeapp.ClosureResponse}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /finance/closures/{id}/justification [post]
func (h *ClosureHandler) RecordJustification(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "closure")
	if !ok {
		return
	}

	var req financeapp.JustificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	closure, err := h.closures.RecordJustification(c.Request.Context(), scope, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, closure)
}

// Validate godoc
// @Summary      Validate a closure
// @Description  Locks the closure. Fails with 422 while a non-zero variance is unjustified or its justification is stale.
// @Tags         finance-closures
// @Produce      json
// @Param        id path string true "Closure ID" format(uuid)
// @Success      200 {object} dto.Response{data=financeapp.ClosureResponse}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /finance/closures/{id}/validate [post]
func (h *ClosureHandler) Validate(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "closure")
	if !ok {
		return
	}

	closure, err := h.closures.Validate(c.Request.Context(), scope, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, closure)
}

// ValidateByDate validates the closure of a date, recording the
// justification first when one is given
func (h *ClosureHandler) ValidateByDate(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}

	var req financeapp.ValidateByDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	closure, err := h.closures.ValidateByDate(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, closure)
}

// Delete removes a draft closure
func (h *ClosureHandler) Delete(c *gin.Context) {
	scope, ok := h.getScope(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "closure")
	if !ok {
		return
	}

	if err := h.closures.Delete(c.Request.Context(), scope, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
