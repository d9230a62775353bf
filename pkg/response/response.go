package response

import (
	"errors"
	"net/http"
	"time"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key the request-id middleware fills.
const RequestIDKey = "request_id"

// HeaderReplayed marks a response served from an earlier idempotent request.
const HeaderReplayed = "Idempotent-Replayed"

// SuccessResponse wraps every 2xx body.
type SuccessResponse struct {
	Data      any    `json:"data"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse wraps every error body. Details carry structured context
// such as available and required balances.
type ErrorResponse struct {
	ErrorCode string         `json:"error_code"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
	Timestamp string         `json:"timestamp"`
}

var internalError = apperror.New("SYS_000", apperror.KindSystemFailure, "Internal server error", http.StatusInternalServerError)

func OK(c *gin.Context, data any) {
	success(c, http.StatusOK, data)
}

func Created(c *gin.Context, data any) {
	success(c, http.StatusCreated, data)
}

// Stored answers a write that may have been an idempotent replay: 201 the
// first time, 200 plus HeaderReplayed afterwards.
func Stored(c *gin.Context, replayed bool, data any) {
	if replayed {
		c.Header(HeaderReplayed, "true")
		success(c, http.StatusOK, data)
		return
	}
	success(c, http.StatusCreated, data)
}

// Error writes err as an ErrorResponse. Anything that is not an
// *apperror.AppError is reported as SYS_000 with no detail.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = internalError
	}
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Kind:      string(appErr.Kind),
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, SuccessResponse{Data: data, RequestID: requestID(c), Timestamp: timestamp()})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func requestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return uuid.NewString()
}
