package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/repository"
)

const IdempotencyKeyHeader = "Idempotency-Key"

const (
	ctxIdempotencyKey         = "idempotency_key"
	ctxIdempotencyRequestHash = "idempotency_request_hash"
	ctxExistingSubmissionID   = "idempotency_existing_submission_id"
)

// IdempotencyMiddleware handles idempotency key validation
func IdempotencyMiddleware(keys repository.IdempotencyKeyRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to POST/PUT/PATCH requests
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.Error("Failed to read request body for idempotency", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to process request"})
			c.Abort()
			return
		}

		// Restore body for handler
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		requestHash := HashRequest(body)

		existingKey, err := keys.GetByKey(c.Request.Context(), idempotencyKey)
		if err != nil {
			logger.Error("Failed to check idempotency key", zap.Error(err))
			c.Next()
			return
		}

		if existingKey != nil {
			if existingKey.RequestHash != requestHash {
				c.JSON(http.StatusConflict, gin.H{
					"success": false,
					"message": "idempotency key conflict: same key used with different payload",
				})
				c.Abort()
				return
			}
			c.Set(ctxExistingSubmissionID, existingKey.SubmissionID)
		} else {
			// stored by the handler once the submission has an ID
			c.Set(ctxIdempotencyKey, idempotencyKey)
			c.Set(ctxIdempotencyRequestHash, requestHash)
		}

		c.Next()
	}
}

// HashRequest returns the hex sha256 of a request body
func HashRequest(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// GetIdempotencyInfo retrieves idempotency information from context. When isReplay is true the
// request repeats an earlier one and existingID names its submission.
func GetIdempotencyInfo(c *gin.Context) (key string, requestHash string, existingID uuid.UUID, isReplay bool) {
	if v, exists := c.Get(ctxExistingSubmissionID); exists {
		if id, ok := v.(uuid.UUID); ok {
			return "", "", id, true
		}
	}

	key = c.GetString(ctxIdempotencyKey)
	requestHash = c.GetString(ctxIdempotencyRequestHash)
	return key, requestHash, uuid.Nil, false
}
