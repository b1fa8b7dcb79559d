package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tourvault/internal/common"
	"github.com/dmitrijs2005/tourvault/internal/logging"
	"github.com/dmitrijs2005/tourvault/internal/server/auth"
	"github.com/dmitrijs2005/tourvault/internal/server/models"
	"github.com/dmitrijs2005/tourvault/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type fakeUploadAPI struct {
	target  *services.UploadTarget
	session *models.UploadSession
	err     error

	lastOwner    string
	lastFilename string
	lastSize     uint64
	chunkData    string
	chunkSeq     int
}

func (f *fakeUploadAPI) RequestChunkUpload(_ context.Context, ownerID, filename string, declaredSize uint64) (*services.UploadTarget, error) {
	f.lastOwner, f.lastFilename, f.lastSize = ownerID, filename, declaredSize
	return f.target, f.err
}

func (f *fakeUploadAPI) StoreChunk(_ context.Context, ownerID, sessionID string, seq int, r io.Reader) error {
	f.lastOwner = ownerID
	f.chunkSeq = seq
	data, _ := io.ReadAll(r)
	f.chunkData = string(data)
	return f.err
}

func (f *fakeUploadAPI) FinalizeChunkedUpload(_ context.Context, ownerID, sessionID string) (*models.UploadSession, error) {
	f.lastOwner = ownerID
	return f.session, f.err
}

func (f *fakeUploadAPI) RequestDirectUpload(_ context.Context, ownerID, filename string, declaredSize uint64) (*services.UploadTarget, error) {
	f.lastOwner, f.lastFilename, f.lastSize = ownerID, filename, declaredSize
	return f.target, f.err
}

func (f *fakeUploadAPI) CompleteDirectUpload(_ context.Context, ownerID, sessionID string, success bool, reason string) (*models.UploadSession, error) {
	f.lastOwner = ownerID
	return f.session, f.err
}

func (f *fakeUploadAPI) Status(_ context.Context, ownerID, sessionID string) (*models.UploadSession, error) {
	f.lastOwner = ownerID
	return f.session, f.err
}

func (f *fakeUploadAPI) RequestDownload(_ context.Context, ownerID, sessionID string) (*services.UploadTarget, error) {
	f.lastOwner = ownerID
	return f.target, f.err
}

type fakeRenameAPI struct {
	result *models.RenameResult
	err    error
	force  bool
}

func (f *fakeRenameAPI) Rename(_ context.Context, oldName, newName string, force bool) (*models.RenameResult, error) {
	f.force = force
	return f.result, f.err
}

type fakeProgressAPI struct {
	record *models.ProgressRecord
	err    error
}

func (f *fakeProgressAPI) Get(_ context.Context, operationID string) (*models.ProgressRecord, error) {
	return f.record, f.err
}

type httpFixture struct {
	server   *Server
	uploads  *fakeUploadAPI
	renames  *fakeRenameAPI
	progress *fakeProgressAPI
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()
	uploads := &fakeUploadAPI{}
	renames := &fakeRenameAPI{}
	progress := &fakeProgressAPI{}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server := NewServer(":0", uploads, renames, progress, testSecret, logger)
	return &httpFixture{server: server, uploads: uploads, renames: renames, progress: progress}
}

func (f *httpFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func testToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken("user-1", testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuth_MissingToken(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(t, http.MethodGet, "/api/uploads/s1/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "unauthorized", resp.Error.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(t, http.MethodGet, "/api/uploads/s1/status", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestDirectUpload_OK(t *testing.T) {
	f := newHTTPFixture(t)
	expires := time.Now().Add(15 * time.Minute)
	f.uploads.target = &services.UploadTarget{
		SessionID: "s1",
		ObjectKey: "tours/2026/08/31/pkg_abcd1234.zip",
		Method:    "PUT",
		URL:       "http://storage/vault/tours/2026/08/31/pkg_abcd1234.zip?X-Amz-Signature=sig",
		ExpiresAt: expires,
	}

	rec := f.do(t, http.MethodPost, "/api/uploads/direct", testToken(t),
		map[string]any{"filename": "pkg.zip", "declared_size": 2048})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "s1", data["session_id"])
	assert.Equal(t, "PUT", data["method"])

	assert.Equal(t, "user-1", f.uploads.lastOwner)
	assert.Equal(t, "pkg.zip", f.uploads.lastFilename)
	assert.Equal(t, uint64(2048), f.uploads.lastSize)
}

func TestRequestDirectUpload_BadBody(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(t, http.MethodPost, "/api/uploads/direct", testToken(t), `{"filename": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestDirectUpload_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "validation", err: common.ErrorValidation, wantCode: http.StatusBadRequest, wantErr: "validation_failed"},
		{name: "rate limited", err: common.ErrorRateLimited, wantCode: http.StatusTooManyRequests, wantErr: "rate_limited"},
		{name: "internal", err: io.ErrUnexpectedEOF, wantCode: http.StatusInternalServerError, wantErr: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHTTPFixture(t)
			f.uploads.err = tt.err

			rec := f.do(t, http.MethodPost, "/api/uploads/direct", testToken(t),
				map[string]any{"filename": "pkg.zip", "declared_size": 2048})
			assert.Equal(t, tt.wantCode, rec.Code)

			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}
}

func TestStoreChunk_PassesBodyAndSequence(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(t, http.MethodPut, "/api/uploads/chunked/s1/7", testToken(t), "chunk-bytes")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 7, f.uploads.chunkSeq)
	assert.Equal(t, "chunk-bytes", f.uploads.chunkData)
	assert.Equal(t, "user-1", f.uploads.lastOwner)
}

func TestStoreChunk_BadSequence(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(t, http.MethodPut, "/api/uploads/chunked/s1/notanumber", testToken(t), "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinalize_ReturnsSession(t *testing.T) {
	f := newHTTPFixture(t)
	now := time.Now()
	f.uploads.session = &models.UploadSession{
		ID:           "s1",
		OwnerID:      "user-1",
		ObjectKey:    "tours/2026/08/31/pkg_abcd1234.zip",
		Filename:     "pkg.zip",
		DeclaredSize: 2048,
		ActualSize:   2048,
		Status:       models.UploadStatusCompleted,
		CreatedAt:    now,
		CompletedAt:  &now,
	}

	rec := f.do(t, http.MethodPost, "/api/uploads/chunked/s1/finalize", testToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, float64(2048), data["actual_size"])
}

func TestUploadStatus_NotFound(t *testing.T) {
	f := newHTTPFixture(t)
	f.uploads.err = common.ErrorNotFound

	rec := f.do(t, http.MethodGet, "/api/uploads/unknown/status", testToken(t), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompleteDirectUpload_VerificationFailure(t *testing.T) {
	f := newHTTPFixture(t)
	f.uploads.err = common.ErrorVerificationFailed

	rec := f.do(t, http.MethodPost, "/api/uploads/direct/s1/complete", testToken(t),
		map[string]any{"success": true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Equal(t, "verification_failed", resp.Error.Code)
	// generic message only, detail stays in logs
	assert.NotContains(t, resp.Message, "declared")
}

func TestRenameArtifact_OK(t *testing.T) {
	f := newHTTPFixture(t)
	f.renames.result = &models.RenameResult{
		Outcome:     models.RenameOutcomeCompleted,
		OperationID: "op1",
		Strategy:    models.RenameStrategySimple,
		Estimated:   3 * time.Second,
		Elapsed:     time.Second,
	}

	rec := f.do(t, http.MethodPost, "/api/artifacts/rename", testToken(t),
		map[string]any{"old_name": "a", "new_name": "b", "force": true})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "completed", data["outcome"])
	assert.Equal(t, "op1", data["operation_id"])
	assert.True(t, f.renames.force)
}

func TestRenameArtifact_MissingFields(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(t, http.MethodPost, "/api/artifacts/rename", testToken(t),
		map[string]any{"old_name": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperationProgress_OK(t *testing.T) {
	f := newHTTPFixture(t)
	f.progress.record = &models.ProgressRecord{
		OperationID: "op1",
		Type:        "rename",
		Target:      "summer-tour",
		Status:      models.ProgressStatusRunning,
		Percent:     42,
		Message:     "copying",
		StartedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	rec := f.do(t, http.MethodGet, "/api/operations/op1", testToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(42), data["percent"])
	assert.Equal(t, "running", data["status"])
}

func TestOperationProgress_Expired(t *testing.T) {
	f := newHTTPFixture(t)
	f.progress.err = common.ErrorNotFound

	rec := f.do(t, http.MethodGet, "/api/operations/op1", testToken(t), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
