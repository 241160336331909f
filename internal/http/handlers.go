package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-record-service/internal/handler"
	"github.com/kjstillabower/weather-record-service/internal/lifecycle"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/traffic"
)

// maxBodyBytes caps request bodies on the weather routes.
const maxBodyBytes = 1 << 20

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// StoreHealthy, when set, reports the result of the last periodic store ping.
	StoreHealthy func() bool
}

// Handler adapts net/http requests to the weather request handler and serves /health.
type Handler struct {
	weather          *handler.Handler
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(weather *handler.Handler, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weather:      weather,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// ServeWeather handles every method on /weather and /weather/{id}. The request is
// converted to a descriptor, dispatched, and the response descriptor written back.
func (h *Handler) ServeWeather(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body exceeds 1MB")
			return
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "unable to read request body")
		return
	}

	req := handler.Request{
		Method:                r.Method,
		PathParameters:        mux.Vars(r),
		QueryStringParameters: firstValues(r),
		Body:                  string(body),
	}
	resp, err := h.weather.Handle(r.Context(), req)
	if err != nil {
		if errors.Is(err, handler.ErrUnsupportedOperation) {
			traffic.Record(traffic.OutcomeSuccess)
			writeError(w, r, http.StatusMethodNotAllowed, handler.ErrorCategoryUnsupported.Code(), err.Error())
			return
		}
		traffic.Record(traffic.OutcomeError)
		writeError(w, r, http.StatusInternalServerError, handler.CategorizeError(err).Code(), err.Error())
		return
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		traffic.Record(traffic.OutcomeError)
	} else {
		traffic.Record(traffic.OutcomeSuccess)
	}
	writeResponse(w, resp)
}

// firstValues flattens the query string to one value per key, as API Gateway does
// for queryStringParameters.
func firstValues(r *http.Request) map[string]string {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"store": "healthy"}
	if result.reason == "store_unreachable" {
		checks["store"] = "unhealthy"
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > store unreachable > overloaded > error rate > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	cfg := h.healthConfig
	if cfg == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if cfg.StoreHealthy != nil && !cfg.StoreHealthy() {
		return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable"}
	}
	if cfg.RateLimitRPS > 0 && cfg.OverloadWindow > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(traffic.CountsIn(cfg.OverloadWindow).Requests()) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if cfg.DegradedWindow > 0 && cfg.DegradedErrorPct > 0 {
		counts := traffic.CountsIn(cfg.DegradedWindow)
		if counts.Success+counts.Error > 0 && counts.ErrorPct() >= float64(cfg.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResponse copies a response descriptor onto w.
func writeResponse(w http.ResponseWriter, resp handler.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeResponse(w, handler.ErrorResponse(r.Context(), status, code, message))
}
