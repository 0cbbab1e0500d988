package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"captions/internal/domain/entity"
)

const maxReasonBytes = 512

// HTTPDispatcher starts jobs on a worker that exposes POST /process?jobId=.
type HTTPDispatcher struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPDispatcher(baseURL string, client *http.Client) *HTTPDispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDispatcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  client,
	}
}

// Dispatch sends one request. The deadline comes from ctx.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, jobID string) error {
	target := fmt.Sprintf("%s/process?jobId=%s", d.BaseURL, url.QueryEscape(jobID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return &entity.DispatchFailedError{Err: err}
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return &entity.DispatchFailedError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxReasonBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := http.StatusText(resp.StatusCode)
		if msg := strings.TrimSpace(string(body)); msg != "" {
			reason += ": " + msg
		}
		return &entity.DispatchFailedError{StatusCode: resp.StatusCode, Reason: reason}
	}
	return nil
}
