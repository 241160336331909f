// Package handler implements the weather record request handler: one request
// descriptor in, one database operation, one JSON response descriptor out.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/store"
	"github.com/kjstillabower/weather-record-service/internal/validation"
)

// Request is the transport-neutral request descriptor. The JSON names match the
// API Gateway proxy event so saved events can be replayed through weatherctl.
type Request struct {
	Method                string            `json:"httpMethod"`
	PathParameters        map[string]string `json:"pathParameters,omitempty"`
	QueryStringParameters map[string]string `json:"queryStringParameters,omitempty"`
	Body                  string            `json:"body,omitempty"`
}

// Response is the response descriptor. Body is always JSON.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
}

// Operation names used in logs and the weatherOperationsTotal metric.
const (
	OpCreate  = "create"
	OpList    = "list"
	OpDelete  = "delete"
	OpReplace = "replace"
	OpMerge   = "merge"
)

// Handler dispatches requests to the store by HTTP method.
type Handler struct {
	store  store.Store
	logger *zap.Logger
}

// New returns a Handler. A nil logger is replaced with a no-op logger; request-scoped
// loggers in the context take precedence.
func New(s store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: s, logger: logger}
}

// Handle performs the operation selected by req.Method. Every failure inside an
// operation becomes a 500 response; only an unsupported method returns an error,
// of type *OperationError.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	switch req.Method {
	case http.MethodPost:
		return h.create(ctx, req), nil
	case http.MethodGet:
		return h.list(ctx, req), nil
	case http.MethodDelete:
		return h.delete(ctx, req), nil
	case http.MethodPut:
		return h.replace(ctx, req), nil
	case http.MethodPatch:
		return h.merge(ctx, req), nil
	default:
		return Response{}, &OperationError{Method: req.Method}
	}
}

func (h *Handler) create(ctx context.Context, req Request) Response {
	var in models.RecordInput
	if err := decodeBody(req.Body, &in); err != nil {
		return h.fail(ctx, OpCreate, err)
	}
	if err := validation.ValidateInput(in); err != nil {
		return h.fail(ctx, OpCreate, err)
	}

	// max+1 is not atomic: concurrent creates can observe the same max and
	// insert duplicate ids.
	maxID, err := h.store.MaxID(ctx)
	if err != nil {
		return h.fail(ctx, OpCreate, err)
	}
	id := maxID + 1
	if err := h.store.Insert(ctx, in.Record(id)); err != nil {
		return h.fail(ctx, OpCreate, err)
	}
	return h.ok(OpCreate, http.StatusOK, map[string]int64{"id": id})
}

func (h *Handler) list(ctx context.Context, req Request) Response {
	f := store.Filter{
		Region:           req.QueryStringParameters["region"],
		WeatherCondition: req.QueryStringParameters["weatherCondition"],
	}
	records, err := h.store.List(ctx, f)
	if err != nil {
		return h.fail(ctx, OpList, err)
	}
	if records == nil {
		records = []models.WeatherRecord{}
	}
	return h.ok(OpList, http.StatusOK, records)
}

func (h *Handler) delete(ctx context.Context, req Request) Response {
	id, err := pathID(req)
	if err != nil {
		return h.fail(ctx, OpDelete, err)
	}
	if err := h.store.DeleteByID(ctx, id); err != nil {
		return h.fail(ctx, OpDelete, err)
	}
	return h.ok(OpDelete, http.StatusOK, messageBody(fmt.Sprintf("Weather entry with id %s deleted successfully.", req.PathParameters["id"])))
}

func (h *Handler) replace(ctx context.Context, req Request) Response {
	id, err := pathID(req)
	if err != nil {
		return h.fail(ctx, OpReplace, err)
	}
	var in models.RecordInput
	if err := decodeBody(req.Body, &in); err != nil {
		return h.fail(ctx, OpReplace, err)
	}
	if err := validation.ValidateInput(in); err != nil {
		return h.fail(ctx, OpReplace, err)
	}
	return h.update(ctx, OpReplace, id, req.PathParameters["id"], in.Patch())
}

func (h *Handler) merge(ctx context.Context, req Request) Response {
	id, err := pathID(req)
	if err != nil {
		return h.fail(ctx, OpMerge, err)
	}
	var patch models.RecordPatch
	if err := decodeBody(req.Body, &patch); err != nil {
		return h.fail(ctx, OpMerge, err)
	}
	return h.update(ctx, OpMerge, id, req.PathParameters["id"], patch)
}

// update applies patch to id. rawID is the path value as sent and is echoed in the
// not-found message.
func (h *Handler) update(ctx context.Context, op string, id int64, rawID string, patch models.RecordPatch) Response {
	updated, err := h.store.Update(ctx, id, patch)
	if errors.Is(err, store.ErrNotFound) {
		observability.WeatherOperationsTotal.WithLabelValues(op, "not_found").Inc()
		return jsonResponse(http.StatusNotFound, messageBody(fmt.Sprintf("Weather entry with id %s not found.", rawID)))
	}
	if err != nil {
		return h.fail(ctx, op, err)
	}
	return h.ok(op, http.StatusOK, updated)
}

func (h *Handler) ok(op string, status int, v interface{}) Response {
	observability.WeatherOperationsTotal.WithLabelValues(op, "success").Inc()
	return jsonResponse(status, v)
}

// fail logs err and converts it to a 500 response in the standard error shape.
func (h *Handler) fail(ctx context.Context, op string, err error) Response {
	category := CategorizeError(err)
	observability.WeatherOperationsTotal.WithLabelValues(op, string(category)).Inc()
	observability.LoggerFromContext(ctx, h.logger).Error("request failed",
		zap.String("operation", op),
		zap.String("error_category", string(category)),
		zap.Error(err))
	return ErrorResponse(ctx, http.StatusInternalServerError, category.Code(), err.Error())
}

// ErrorResponse builds {"error":{"code","message","requestId"}} with the correlation id from ctx.
func ErrorResponse(ctx context.Context, status int, code, message string) Response {
	return jsonResponse(status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(ctx),
		},
	})
}

func messageBody(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func jsonResponse(status int, v interface{}) Response {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":{"code":"PERSISTENCE_ERROR","message":"failed to encode response"}}`)
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func decodeBody(body string, v interface{}) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidBody)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	return nil
}

func pathID(req Request) (int64, error) {
	raw := strings.TrimSpace(req.PathParameters["id"])
	if raw == "" {
		return 0, fmt.Errorf("%w: missing id path parameter", ErrInvalidID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}
