package handler

import (
	"net/http"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/middleware"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	inventoryService service.InventoryService
}

func NewInventoryHandler(inventoryService service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	inventory := router.Group("/inventory")
	{
		inventory.POST("/adjust", h.AdjustStock)
		inventory.POST("/validate", h.ValidateStock)
		inventory.GET("/logs", h.ListLogs)
		inventory.GET("/alerts", h.ListAlerts)
	}
}

type adjustStockRequest struct {
	Ref        model.ProductRef `json:"ref" binding:"required"`
	Delta      int              `json:"delta" binding:"required"`
	ChangeType string           `json:"change_type" binding:"required,oneof=restock adjustment return"`
	Reason     string           `json:"reason"`
}

type validateStockRequest struct {
	Lines []service.StockLine `json:"lines" binding:"required,min=1"`
}

// AdjustStock applies a manual stock movement
// @Summary      Adjust stock
// @Description  Applies a signed delta to a product, variant or combination. Stock never goes below zero.
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      adjustStockRequest  true  "Stock adjustment"
// @Success      200      {object}  response.Response{data=service.StockAdjustmentResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/inventory/adjust [post]
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.inventoryService.AdjustStock(c.Request.Context(), service.StockAdjustment{
		Ref:        req.Ref,
		Delta:      req.Delta,
		ChangeType: req.ChangeType,
		Reason:     req.Reason,
		ActorID:    middleware.ActorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ValidateStock reports every line that cannot be fulfilled
// @Summary      Validate stock
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      validateStockRequest  true  "Requested lines"
// @Success      200      {object}  response.Response{data=object}
// @Router       /api/inventory/validate [post]
func (h *InventoryHandler) ValidateStock(c *gin.Context) {
	var req validateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	issues, err := h.inventoryService.ValidateStock(c.Request.Context(), req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}
	if issues == nil {
		issues = []apperror.StockIssue{}
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"valid":  len(issues) == 0,
		"issues": issues,
	}))
}

// ListLogs returns the stock ledger, newest first
// @Summary      List inventory logs
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        product_id   query     string  false  "Filter by product or special product"
// @Param        order_id     query     string  false  "Filter by order"
// @Param        change_type  query     string  false  "sale, restock, adjustment or return"
// @Param        from         query     string  false  "RFC3339 lower bound"
// @Param        to           query     string  false  "RFC3339 upper bound"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.Response{data=response.Page}
// @Router       /api/inventory/logs [get]
func (h *InventoryHandler) ListLogs(c *gin.Context) {
	p := pagination.Parse(c)
	productID, ok := queryID(c, "product_id")
	if !ok {
		return
	}
	orderID, ok := queryID(c, "order_id")
	if !ok {
		return
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}

	logs, total, err := h.inventoryService.ListLogs(c.Request.Context(), repository.InventoryLogFilter{
		ProductID:  productID,
		OrderID:    orderID,
		ChangeType: c.Query("change_type"),
		From:       from,
		To:         to,
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, total, p.Page, p.Limit))
}

func (h *InventoryHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.inventoryService.ListActiveAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, alerts))
}

func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(c, apperror.NewFieldValidation(name, name+" must be an RFC3339 timestamp"))
		return nil, false
	}
	return &t, true
}
