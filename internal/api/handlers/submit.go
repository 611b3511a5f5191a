package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/api/middleware"
	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/internal/service"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

// SubmitTimeout bounds the platform calls made for one submission
const SubmitTimeout = 30 * time.Second

const (
	msgUpdated      = "Metafields updated successfully"
	msgUpdateFailed = "Error updating metafields"
	msgInProgress   = "Submission with this Idempotency-Key is still being processed"
)

// SubmitResponse is the body of every POST /submit-form reply
type SubmitResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Error        string `json:"error,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// HandleSubmitForm handles POST /submit-form
func HandleSubmitForm(submissions *service.SubmissionService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, requestHash, existingID, isReplay := middleware.GetIdempotencyInfo(c)
		if isReplay {
			replaySubmission(c, submissions, existingID, logger)
			return
		}

		var sub domain.Submission
		if err := c.ShouldBindJSON(&sub); err != nil {
			c.JSON(http.StatusBadRequest, SubmitResponse{Message: "Invalid request body", Error: err.Error()})
			return
		}

		// the write completes even if the client goes away
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), SubmitTimeout)
		defer cancel()

		record, _, err := submissions.SubmitWithKey(ctx, sub, key, requestHash)
		var inUse *service.KeyInUseError
		if stderrors.As(err, &inUse) {
			replaySubmission(c, submissions, inUse.SubmissionID, logger)
			return
		}

		status, resp := errorResponse(sub.OrderName(), err)
		if record != nil {
			resp.SubmissionID = record.ID.String()
		}
		if status == http.StatusInternalServerError {
			logger.Error("Error updating metafields",
				zap.String("order_name", sub.OrderName()),
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.Error(err),
			)
		}
		c.JSON(status, resp)
	}
}

// replaySubmission answers with the stored outcome of an earlier request with the same key
func replaySubmission(c *gin.Context, submissions *service.SubmissionService, id uuid.UUID, logger *zap.Logger) {
	record, err := submissions.Get(c.Request.Context(), id)
	if err != nil {
		logger.Error("Failed to load replayed submission", zap.String("submission_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, SubmitResponse{Message: msgUpdateFailed, Error: err.Error()})
		return
	}
	logger.Info("Replaying submission outcome", zap.String("submission_id", record.ID.String()), zap.String("status", string(record.Status)))
	status, resp := recordResponse(record)
	c.JSON(status, resp)
}

// errorResponse maps a Submit error onto the reply
func errorResponse(orderName string, err error) (int, SubmitResponse) {
	if err == nil {
		return http.StatusOK, SubmitResponse{Success: true, Message: msgUpdated}
	}

	var ve *errors.ErrValidation
	if stderrors.As(err, &ve) {
		return http.StatusBadRequest, SubmitResponse{Message: ve.Error()}
	}
	var nf *errors.ErrNotFound
	if stderrors.As(err, &nf) {
		return http.StatusNotFound, SubmitResponse{Message: notFoundMessage(nf, orderName)}
	}
	var conflict *errors.ErrConflict
	if stderrors.As(err, &conflict) {
		return http.StatusConflict, SubmitResponse{Message: conflict.Error()}
	}
	return http.StatusInternalServerError, SubmitResponse{Message: msgUpdateFailed, Error: err.Error()}
}

func notFoundMessage(nf *errors.ErrNotFound, orderName string) string {
	if nf.Resource == "order" {
		return fmt.Sprintf("Order with name %s not found", orderName)
	}
	return fmt.Sprintf("Variant %s not found", nf.ID)
}

// recordResponse rebuilds the reply for a stored submission
func recordResponse(record *domain.SubmissionRecord) (int, SubmitResponse) {
	var errText string
	if record.Error != nil {
		errText = *record.Error
	}

	var status int
	var resp SubmitResponse
	switch record.Status {
	case domain.SubmissionStatusApplied:
		status, resp = http.StatusOK, SubmitResponse{Success: true, Message: msgUpdated}
	case domain.SubmissionStatusDuplicate:
		status, resp = http.StatusConflict, SubmitResponse{Message: errText}
	case domain.SubmissionStatusNotFound:
		if record.ShopifyOrderID == nil {
			status, resp = http.StatusNotFound, SubmitResponse{Message: fmt.Sprintf("Order with name %s not found", record.OrderName)}
		} else {
			status, resp = http.StatusNotFound, SubmitResponse{Message: fmt.Sprintf("Variant %s not found", record.VariantID)}
		}
	case domain.SubmissionStatusInvalid:
		status, resp = http.StatusBadRequest, SubmitResponse{Message: errText}
	case domain.SubmissionStatusFailed:
		status, resp = http.StatusInternalServerError, SubmitResponse{Message: msgUpdateFailed, Error: errText}
	default:
		status, resp = http.StatusConflict, SubmitResponse{Message: msgInProgress}
	}
	resp.SubmissionID = record.ID.String()
	return status, resp
}
