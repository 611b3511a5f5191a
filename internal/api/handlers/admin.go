package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/internal/service"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

// HandleListSubmissions handles GET /v1/admin/submissions
func HandleListSubmissions(submissions *service.SubmissionService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Parse query parameters
		statusStr := c.Query("status")
		limitStr := c.DefaultQuery("limit", "50")
		offsetStr := c.DefaultQuery("offset", "0")

		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			limit = 50
		}

		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			offset = 0
		}

		filter := domain.SubmissionFilter{Limit: limit, Offset: offset}
		if order := c.Query("order"); order != "" {
			filter.OrderName = domain.Submission{OrderID: order}.OrderName()
		}
		if statusStr != "" {
			status := domain.SubmissionStatus(statusStr)
			if !status.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			filter.Status = status
		}

		records, err := submissions.List(c.Request.Context(), filter)
		if err != nil {
			logger.Error("Failed to list submissions", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		out := make([]gin.H, len(records))
		for i, record := range records {
			out[i] = submissionResponse(record)
		}

		c.JSON(http.StatusOK, gin.H{
			"submissions": out,
			"limit":       limit,
			"offset":      offset,
		})
	}
}

// HandleGetSubmission handles GET /v1/admin/submissions/:id
func HandleGetSubmission(submissions *service.SubmissionService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission ID"})
			return
		}

		record, err := submissions.Get(c.Request.Context(), id)
		if err != nil {
			var nf *errors.ErrNotFound
			if stderrors.As(err, &nf) {
				c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
				return
			}
			logger.Error("Failed to get submission", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, submissionResponse(record))
	}
}

// HandleGetOrderMetafields handles GET /v1/admin/orders/:name/metafields
func HandleGetOrderMetafields(submissions *service.SubmissionService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		details, err := submissions.OrderDetails(c.Request.Context(), c.Param("name"))
		if err != nil {
			var nf *errors.ErrNotFound
			if stderrors.As(err, &nf) {
				c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
				return
			}
			logger.Error("Failed to read order metafields", zap.String("order", c.Param("name")), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read order from Shopify"})
			return
		}

		metafields := make([]gin.H, len(details.Metafields))
		for i, mf := range details.Metafields {
			metafields[i] = gin.H{
				"id":        mf.ID,
				"namespace": mf.Namespace,
				"key":       mf.Key,
				"type":      mf.Type,
				"value":     mf.Value,
			}
		}

		order := gin.H{
			"id":          details.Order.ID,
			"name":        details.Order.Name,
			"email":       details.Order.Email,
			"currency":    details.Order.Currency,
			"total_price": details.Order.TotalPrice.StringFixed(2),
		}
		if details.Order.CreatedAt != nil {
			order["created_at"] = details.Order.CreatedAt.Format(time.RFC3339)
		}

		c.JSON(http.StatusOK, gin.H{
			"order":                 order,
			"details":               details.Details,
			"submitted_variant_ids": details.SubmittedVariantIDs,
			"metafields":            metafields,
		})
	}
}

func submissionResponse(record *domain.SubmissionRecord) gin.H {
	fields := record.Fields
	if fields == nil {
		fields = domain.FieldSet{}
	}
	return gin.H{
		"id":               record.ID.String(),
		"order_name":       record.OrderName,
		"shopify_order_id": record.ShopifyOrderID,
		"variant_id":       record.VariantID,
		"variant_label":    record.VariantLabel,
		"fields":           fields,
		"status":           record.Status,
		"error":            record.Error,
		"created_at":       record.CreatedAt.Format(time.RFC3339),
		"updated_at":       record.UpdatedAt.Format(time.RFC3339),
	}
}
