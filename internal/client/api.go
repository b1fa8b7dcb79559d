// Package client is the API client used by the tourctl command. It drives
// both upload paths and the rename/progress operations over the JSON API.
package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to a TourVault server.
type Client struct {
	r *resty.Client
}

func New(baseURL, token string) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Accept", "application/json")
	return &Client{r: r}
}

// envelope mirrors the server's uniform response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Context string `json:"context"`
	} `json:"error"`
}

type UploadTarget struct {
	SessionID string     `json:"session_id"`
	ObjectKey string     `json:"object_key"`
	Method    string     `json:"method"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type Session struct {
	SessionID    string     `json:"session_id"`
	ObjectKey    string     `json:"object_key"`
	Filename     string     `json:"filename"`
	DeclaredSize uint64     `json:"declared_size"`
	ActualSize   uint64     `json:"actual_size"`
	Status       string     `json:"status"`
	Error        string     `json:"error"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

type RenameResult struct {
	Outcome          string  `json:"outcome"`
	OperationID      string  `json:"operation_id"`
	Strategy         string  `json:"strategy"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
}

type Progress struct {
	OperationID string `json:"operation_id"`
	Type        string `json:"type"`
	Target      string `json:"target"`
	Status      string `json:"status"`
	Percent     int    `json:"percent"`
	Message     string `json:"message"`
}

type apiResult[T any] struct {
	envelope
	Data T `json:"data"`
}

func checkResponse(resp *resty.Response, env *envelope, err error) error {
	if err != nil {
		return err
	}
	if env.Success {
		return nil
	}
	if env.Error != nil {
		msg := env.Message
		if env.Error.Context != "" {
			msg = env.Error.Context
		}
		return fmt.Errorf("server error %s: %s", env.Error.Code, msg)
	}
	return fmt.Errorf("unexpected response status %d", resp.StatusCode())
}

func (c *Client) RequestChunkUpload(ctx context.Context, filename string, declaredSize uint64) (*UploadTarget, error) {
	var result apiResult[UploadTarget]
	resp, err := c.r.R().
		SetContext(ctx).
		SetBody(map[string]any{"filename": filename, "declared_size": declaredSize}).
		SetResult(&result).
		SetError(&result).
		Post("/api/uploads/chunked")
	if err := checkResponse(resp, &result.envelope, err); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

func (c *Client) StoreChunk(ctx context.Context, sessionID string, seq int, chunk io.Reader) error {
	var result apiResult[any]
	resp, err := c.r.R().
		SetContext(ctx).
		SetBody(chunk).
		SetResult(&result).
		SetError(&result).
		Put(fmt.Sprintf("/api/uploads/chunked/%s/%d", sessionID, seq))
	return checkResponse(resp, &result.envelope, err)
}

func (c *Client) FinalizeChunkedUpload(ctx context.Context, sessionID string) (*Session, error) {
	var result apiResult[Session]
	resp, err := c.r.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/api/uploads/chunked/%s/finalize", sessionID))
	if err := checkResponse(resp, &result.envelope, err); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

func (c *Client) RequestDirectUpload(ctx context.Context, filename string, declaredSize uint64) (*UploadTarget, error) {
	var result apiResult[UploadTarget]
	resp, err := c.r.R().
		SetContext(ctx).
		SetBody(map[string]any{"filename": filename, "declared_size": declaredSize}).
		SetResult(&result).
		SetError(&result).
		Post("/api/uploads/direct")
	if err := checkResponse(resp, &result.envelope, err); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

// PutPresigned uploads the payload straight to object storage using the
// presigned target issued by the server.
func (c *Client) PutPresigned(ctx context.Context, target *UploadTarget, payload io.Reader) error {
	// fresh client: the presigned URL is absolute and carries no API auth
	resp, err := resty.New().R().
		SetContext(ctx).
		SetBody(payload).
		SetHeader("Content-Type", "application/zip").
		Put(target.URL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("storage rejected upload: %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) CompleteDirectUpload(ctx context.Context, sessionID string, success bool, reason string) (*Session, error) {
	var result apiResult[Session]
	resp, err := c.r.R().
		SetContext(ctx).
		SetBody(map[string]any{"success": success, "error": reason}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/api/uploads/direct/%s/complete", sessionID))
	if err := checkResponse(resp, &result.envelope, err); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

func (c *Client) Status(ctx context.Context, sessionID string) (*Session, error) {
	var result apiResult[Session]
	resp, err := c.r.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result).
		Get(fmt.Sprintf("/api/uploads/%s/status", sessionID))
	if err := checkResponse(resp, &result.envelope, err); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

func (c *Client) Rename(ctx context.Context, oldName, newName string, force bool) (*RenameResult, error) {
	var result apiResult[RenameResult]
	resp, err := c.r.R().
		SetContext(ctx).
		SetBody(map[string]any{"old_name": oldName, "new_name": newName, "force": force}).
		SetResult(&result).
		SetError(&result).
		Post("/api/artifacts/rename")
	if err := checkResponse(resp, &result.envelope, err); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

func (c *Client) OperationProgress(ctx context.Context, operationID string) (*Progress, error) {
	var result apiResult[Progress]
	resp, err := c.r.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result).
		Get(fmt.Sprintf("/api/operations/%s", operationID))
	if err := checkResponse(resp, &result.envelope, err); err != nil {
		return nil, err
	}
	return &result.Data, nil
}
