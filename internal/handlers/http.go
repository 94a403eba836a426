package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/domain"
	"github.com/veridist/compliance-engine/internal/validation"
)

// ValidationService is the validation entry point consumed by the HTTP
// layer.
type ValidationService interface {
	ValidateTransaction(ctx context.Context, tx *domain.Transaction) (*validation.Result, error)
}

// OverrideService is the override workflow consumed by the HTTP layer.
type OverrideService interface {
	Approve(ctx context.Context, transactionID, approverID, justification string) (*domain.Transaction, error)
	Reject(ctx context.Context, transactionID, approverID, reason string) (*domain.Transaction, error)
	PendingOverrides(ctx context.Context) ([]domain.Transaction, error)
	PendingOverrideCount(ctx context.Context) (int, error)
}

// TransactionReader resolves stored transactions.
type TransactionReader interface {
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
}

// Handler exposes the compliance engine over HTTP.
type Handler struct {
	validator    ValidationService
	overrides    OverrideService
	transactions TransactionReader
	logger       *zap.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(validator ValidationService, overrides OverrideService, transactions TransactionReader, logger *zap.Logger) *Handler {
	return &Handler{
		validator:    validator,
		overrides:    overrides,
		transactions: transactions,
		logger:       logger,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/transactions/validate", h.handleValidate)
		v1.GET("/transactions/:id", h.handleGetTransaction)
		v1.POST("/transactions/:id/override/approve", h.handleApproveOverride)
		v1.POST("/transactions/:id/override/reject", h.handleRejectOverride)
		v1.GET("/overrides/pending", h.handlePendingOverrides)
		v1.GET("/overrides/pending/count", h.handlePendingOverrideCount)
	}
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "compliance-engine",
		"timestamp": time.Now().UTC(),
	})
}

type validateLineRequest struct {
	SubstanceCode string          `json:"substance_code" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required"`
	Unit          string          `json:"unit" binding:"required"`
	BaseQuantity  decimal.Decimal `json:"base_quantity"`
}

type validateRequest struct {
	ExternalReference  string                 `json:"external_reference"`
	Type               domain.TransactionType `json:"type" binding:"required"`
	Direction          domain.Direction       `json:"direction" binding:"required"`
	CustomerID         string                 `json:"customer_id" binding:"required"`
	OriginCountry      string                 `json:"origin_country"`
	DestinationCountry string                 `json:"destination_country"`
	TransactionDate    time.Time              `json:"transaction_date" binding:"required"`
	Lines              []validateLineRequest  `json:"lines" binding:"required,min=1"`
}

func (h *Handler) handleValidate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx := &domain.Transaction{
		ExternalReference:  req.ExternalReference,
		Type:               req.Type,
		Direction:          req.Direction,
		CustomerID:         req.CustomerID,
		OriginCountry:      req.OriginCountry,
		DestinationCountry: req.DestinationCountry,
		TransactionDate:    req.TransactionDate,
	}
	for _, line := range req.Lines {
		tx.Lines = append(tx.Lines, domain.TransactionLine{
			SubstanceCode: line.SubstanceCode,
			Quantity:      line.Quantity,
			Unit:          line.Unit,
			BaseQuantity:  line.BaseQuantity,
		})
	}

	result, err := h.validator.ValidateTransaction(c.Request.Context(), tx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleGetTransaction(c *gin.Context) {
	tx, err := h.transactions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

type overrideRequest struct {
	ApproverID    string `json:"approver_id" binding:"required"`
	Justification string `json:"justification"`
	Reason        string `json:"reason"`
}

func (h *Handler) handleApproveOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.overrides.Approve(c.Request.Context(), c.Param("id"), req.ApproverID, req.Justification)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *Handler) handleRejectOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.overrides.Reject(c.Request.Context(), c.Param("id"), req.ApproverID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *Handler) handlePendingOverrides(c *gin.Context) {
	txs, err := h.overrides.PendingOverrides(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

func (h *Handler) handlePendingOverrideCount(c *gin.Context) {
	count, err := h.overrides.PendingOverrideCount(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// respondError maps domain errors to HTTP status codes. Infrastructure
// faults surface as 500 with a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
