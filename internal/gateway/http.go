package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nerrad567/pinctl-core/internal/infrastructure/config"
)

// maxResponseBody caps how much of a gateway reply is read.
const maxResponseBody = 64 << 10

// HTTPClient dispatches commands with POST {URL}/execute-command.
type HTTPClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     Logger
}

// NewHTTPClient creates a client for the gateway at cfg.URL. Each request
// is bounded by cfg.Timeout seconds (10 when unset).
func NewHTTPClient(cfg config.GatewayConfig) *HTTPClient {
	return &HTTPClient{
		endpoint:   strings.TrimRight(cfg.URL, "/") + "/execute-command",
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.DispatchTimeout()},
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for dispatch events.
func (c *HTTPClient) SetLogger(logger Logger) {
	c.logger = logger
}

type errorBody struct {
	Error string `json:"error"`
}

// Dispatch posts req to the gateway. A 2xx reply is a success unless its
// body carries a non-empty "error" field; any other status is a failure
// with the body's "error" text or GenericFailureMessage.
func (c *HTTPClient) Dispatch(ctx context.Context, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return failure(0, "", fmt.Errorf("encoding request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return failure(0, "", fmt.Errorf("building request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("gateway request failed", "ref_id", req.RefID, "error", err)
		return failure(0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil && resp.StatusCode/100 != 2 {
		return failure(resp.StatusCode, "", fmt.Errorf("reading response: %w", err))
	}

	message := parseErrorText(body)
	if resp.StatusCode/100 != 2 {
		c.logger.Warn("gateway rejected command",
			"ref_id", req.RefID, "status", resp.StatusCode, "error", message)
		return failure(resp.StatusCode, message, nil)
	}
	if message != "" {
		c.logger.Warn("gateway reported error", "ref_id", req.RefID, "error", message)
		return &DispatchError{StatusCode: resp.StatusCode, Message: message}
	}

	c.logger.Debug("command dispatched", "ref_id", req.RefID, "status", resp.StatusCode)
	return nil
}

// parseErrorText extracts a non-empty "error" string from a JSON body.
// Bodies that are empty, not JSON, or have no such field yield "".
func parseErrorText(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return strings.TrimSpace(eb.Error)
}
