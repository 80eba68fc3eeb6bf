package lambdatransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/awmpietro/golang-execution-tracer/internal/app"
	"github.com/awmpietro/golang-execution-tracer/internal/transport/tracedto"
)

type Handler struct {
	svc app.TraceService
}

func NewHandler(svc app.TraceService) *Handler {
	return &Handler{svc: svc}
}

// Route dispatches an API Gateway v2 request by path.
func (h *Handler) Route(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	path := req.RawPath
	if path == "" {
		path = req.RequestContext.HTTP.Path
	}
	switch path {
	case "/redirect/decide":
		return h.Decide(ctx, req)
	case "/actions/project":
		return h.Project(ctx, req)
	default:
		return jsonResp(http.StatusNotFound, map[string]any{"error": "not found", "details": path}), nil
	}
}

func (h *Handler) Decide(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body, err := readBody(req)
	if err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "invalid body", "details": err.Error()}), nil
	}

	var in tracedto.DecideRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()}), nil
	}

	res, err := h.svc.Decide(in.Host, in.Options())
	if err != nil {
		return jsonResp(http.StatusBadRequest, decideErrorBody(err, res)), nil
	}
	return jsonResp(http.StatusOK, tracedto.NewDecideResponse(res)), nil
}

func (h *Handler) Project(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body, err := readBody(req)
	if err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "invalid body", "details": err.Error()}), nil
	}

	var in tracedto.ProjectRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()}), nil
	}

	out, err := h.svc.Project(in.Action, in.Complete)
	if err != nil {
		return jsonResp(http.StatusUnprocessableEntity, map[string]any{"error": "projection failed", "details": err.Error()}), nil
	}
	return jsonResp(http.StatusOK, tracedto.ProjectResponse{Action: out, Complete: in.Complete}), nil
}

func readBody(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

func jsonResp(status int, body any) events.APIGatewayV2HTTPResponse {
	b, _ := json.Marshal(body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(b),
	}
}

func decideErrorBody(err error, res *app.DecideResult) map[string]any {
	body := map[string]any{
		"error":   "decide failed",
		"details": err.Error(),
	}
	if res != nil && res.Trace != nil {
		body["trace"] = res.Trace
	}
	return body
}
