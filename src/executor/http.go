package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/taskmesh/taskmesh/src/wire"
)

// maxResultBytes bounds how much of an executor response we will relay.
const maxResultBytes = 16 << 20

// HTTPExecutor forwards task inputs to an external compute process over
// HTTP. The process receives the raw input bytes in a POST body and answers
// with the raw result bytes. An X-Model response header, when present, names
// the model for response stats.
type HTTPExecutor struct {
	url    string
	client *http.Client
	logger *logrus.Entry
}

// NewHTTPExecutor creates an HTTPExecutor posting to url. No client timeout
// is set: executions may legitimately run for minutes and are bounded by the
// task deadline through the request context instead.
func NewHTTPExecutor(url string, logger *logrus.Entry) *HTTPExecutor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &HTTPExecutor{
		url:    url,
		client: &http.Client{},
		logger: logger,
	}
}

// Execute implements the Executor interface.
func (e *HTTPExecutor) Execute(ctx context.Context, req *wire.TaskRequest) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(req.Input))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Task-ID", req.TaskID)

	e.logger.WithFields(logrus.Fields{
		"task_id": req.TaskID,
		"url":     e.url,
	}).Debug("executing over http")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executor returned %d: %s", resp.StatusCode, body)
	}

	model := resp.Header.Get("X-Model")
	if model == "" {
		model = e.Model()
	}

	return &Result{Output: body, Model: model}, nil
}

// Model implements the Executor interface. The per-response X-Model header
// overrides this label when the executor answers.
func (e *HTTPExecutor) Model() string {
	return "http"
}
