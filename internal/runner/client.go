package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/infrastructure/metrics"
	"github.com/pastejet/pastejet/internal/store"
)

// DefaultTimeout caps one execution round trip. No retries: a second attempt
// would run user code twice.
const DefaultTimeout = 15 * time.Second

// Client proxies code execution to a piston-compatible backend.
type Client struct {
	http    *http.Client
	baseURL string
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewClient(baseURL string, timeout time.Duration, logger logging.Logger, m *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: m,
	}
}

// Request is what a room participant submits. Version is optional; when
// empty it is looked up from the room language table.
type Request struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Code     string `json:"code"`
	Input    string `json:"input"`
}

// Result is the run output.
type Result struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin"`
}

type pistonResponse struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Output string `json:"output"`
	} `json:"run"`
	Message string `json:"message"`
}

// Execute runs the code once. Unsupported languages fail before any network
// traffic.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Version == "" {
		version, err := domain.ExecutableVersion(req.Language)
		if err != nil {
			return nil, err
		}
		req.Version = version
	}

	body, err := json.Marshal(pistonRequest{
		Language: req.Language,
		Version:  req.Version,
		Files:    []pistonFile{{Content: req.Code}},
		Stdin:    req.Input,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.count(req.Language, "error")
		return nil, fmt.Errorf("execute code: %w", err)
	}
	defer resp.Body.Close()

	var decoded pistonResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.count(req.Language, "error")
		return nil, fmt.Errorf("decode execution response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.count(req.Language, "error")
		msg := decoded.Message
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("execution backend: %s", msg)
	}

	c.count(req.Language, "ok")
	return &Result{
		Stdout: decoded.Run.Stdout,
		Stderr: decoded.Run.Stderr,
		Output: decoded.Run.Output,
	}, nil
}

func (c *Client) count(language, outcome string) {
	if c.metrics != nil {
		c.metrics.CodeExecutions.WithLabelValues(language, outcome).Inc()
	}
}

// ExecuteForRoom runs the code and records the output in the room's
// execution results. Recording failures are logged, not returned.
func (c *Client) ExecuteForRoom(ctx context.Context, st store.Store, roomID, userID string, req Request) (*Result, error) {
	result, err := c.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	output := result.Output
	if output == "" {
		output = result.Stdout + result.Stderr
	}
	record := domain.ExecutionResult{
		RoomID:     roomID,
		Output:     output,
		ExecutedBy: userID,
		Timestamp:  time.Now().UTC(),
	}
	data, err := store.Encode(record)
	if err == nil {
		_, err = st.Add(ctx, store.RoomExecutions, data)
	}
	if err != nil {
		c.logger.Warn(logging.IO, logging.ExternalService, "failed to record execution result", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.RoomID:       roomID,
		})
	}

	return result, nil
}
