// Package lambda adapts API Gateway proxy events to the weather request handler.
package lambda

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-record-service/internal/handler"
	"github.com/kjstillabower/weather-record-service/internal/observability"
)

// Adapter serves API Gateway proxy events. One Adapter lives for the whole execution
// environment so the store connection is reused across warm invocations.
type Adapter struct {
	weather *handler.Handler
	logger  *zap.Logger
}

// NewAdapter returns an Adapter around h.
func NewAdapter(h *handler.Handler, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{weather: h, logger: logger}
}

// Handle converts the event, dispatches it and converts the response. An unsupported
// method is returned to the runtime as an error, with no response.
func (a *Adapter) Handle(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(ctx, ev)
	ctx = observability.WithCorrelationID(ctx, corrID)
	ctx = observability.WithLogger(ctx, a.logger.With(zap.String("correlation_id", corrID)))

	req, err := toRequest(ev)
	if err != nil {
		return toResponse(handler.ErrorResponse(ctx, http.StatusInternalServerError, "PARSE_ERROR", err.Error())), nil
	}
	resp, err := a.weather.Handle(ctx, req)
	if err != nil {
		observability.LoggerFromContext(ctx, a.logger).Warn("unsupported operation", zap.String("method", ev.HTTPMethod))
		return events.APIGatewayProxyResponse{}, err
	}
	return toResponse(resp), nil
}

func toRequest(ev events.APIGatewayProxyRequest) (handler.Request, error) {
	body := ev.Body
	if ev.IsBase64Encoded && body != "" {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return handler.Request{}, fmt.Errorf("%w: body is not valid base64", handler.ErrInvalidBody)
		}
		body = string(decoded)
	}
	return handler.Request{
		Method:                ev.HTTPMethod,
		PathParameters:        pathParameters(ev.PathParameters),
		QueryStringParameters: ev.QueryStringParameters,
		Body:                  body,
	}, nil
}

// pathParameters copies params, taking the id from a greedy {proxy+} segment when the
// route has no {id}.
func pathParameters(params map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	if _, ok := out["id"]; !ok {
		if proxy, ok := out["proxy"]; ok {
			out["id"] = proxy
		}
	}
	return out
}

func toResponse(resp handler.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

func correlationID(ctx context.Context, ev events.APIGatewayProxyRequest) string {
	// API Gateway passes header names through with the client's casing.
	for k, v := range ev.Headers {
		if v != "" && strings.EqualFold(k, "X-Correlation-ID") {
			return v
		}
	}
	if ev.RequestContext.RequestID != "" {
		return ev.RequestContext.RequestID
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return lc.AwsRequestID
	}
	return ""
}
