package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stemscribe/api/internal/config"
	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/registry"
	"github.com/stemscribe/api/internal/service"
	"github.com/stemscribe/api/internal/storage"
)

type testApp struct {
	app      *fiber.App
	registry *registry.Registry
	layout   storage.Layout
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	base := t.TempDir()
	layout, err := storage.NewLayout(filepath.Join(base, "uploads"), filepath.Join(base, "outputs"))
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	reg := registry.New()
	cfg := &config.Config{
		Upload: config.UploadConfig{
			MaxSizeMB:  1,
			Extensions: []string{".wav", ".mp3"},
		},
		Pipeline: config.PipelineConfig{
			DefaultMode:         "hybrid",
			ConfidenceThreshold: 0.5,
		},
	}
	svc := service.NewTranscriptionService(reg, layout, storage.NewResolver(layout), nil, cfg)
	h := NewTranscriptionHandler(svc, validator.New())

	app := fiber.New()
	app.Post("/api/upload", h.Upload)
	app.Post("/api/transcribe/:jobId", h.Transcribe)
	app.Get("/api/jobs", h.List)
	app.Get("/api/status/:jobId", h.Status)
	app.Get("/api/result/:jobId", h.Result)
	app.Delete("/api/jobs/:jobId", h.Delete)
	app.Get("/files/:filename", h.Download)

	return &testApp{app: app, registry: reg, layout: layout}
}

func createUploadRequest(t *testing.T, filename string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write([]byte("RIFF\x00\x00\x00\x00WAVEfmt "))
	_, _ = part.Write(make([]byte, 1024))
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/upload", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON: %v (%s)", err, body)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d", resp.StatusCode, want)
	}
}

func TestUploadEndpoint(t *testing.T) {
	ta := setupApp(t)

	resp, err := ta.app.Test(createUploadRequest(t, "song.wav"), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}
	if result["filename"] != "song.wav" {
		t.Errorf("filename = %v", result["filename"])
	}
}

func TestUploadEndpoint_BadExtension(t *testing.T) {
	ta := setupApp(t)

	resp, err := ta.app.Test(createUploadRequest(t, "song.pdf"), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestUploadEndpoint_MissingFile(t *testing.T) {
	ta := setupApp(t)

	req, _ := http.NewRequest(http.MethodPost, "/api/upload", nil)
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestStatusEndpoint(t *testing.T) {
	ta := setupApp(t)

	resp, err := ta.app.Test(createUploadRequest(t, "song.wav"), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	jobID := parseJSON(t, resp)["jobId"].(string)

	req, _ := http.NewRequest(http.MethodGet, "/api/status/"+jobID, nil)
	resp, err = ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != string(model.JobStatusUploaded) {
		t.Errorf("status = %v, want uploaded", result["status"])
	}
}

func TestListEndpoint(t *testing.T) {
	ta := setupApp(t)

	for i := 0; i < 2; i++ {
		resp, err := ta.app.Test(createUploadRequest(t, "song.wav"), -1)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusCreated)
	}

	req, _ := http.NewRequest(http.MethodGet, "/api/jobs", nil)
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	jobs, ok := result["jobs"].([]interface{})
	if !ok || len(jobs) != 2 {
		t.Errorf("jobs = %v, want 2 entries", result["jobs"])
	}
}

func TestStatusEndpoint_NotFound(t *testing.T) {
	ta := setupApp(t)

	req, _ := http.NewRequest(http.MethodGet, "/api/status/nope", nil)
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)

	result := parseJSON(t, resp)
	errDetail := result["error"].(map[string]interface{})
	if errDetail["code"] != "JOB_NOT_FOUND" {
		t.Errorf("error code = %v", errDetail["code"])
	}
}

func TestResultEndpoint_NotCompleted(t *testing.T) {
	ta := setupApp(t)

	resp, err := ta.app.Test(createUploadRequest(t, "song.wav"), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	jobID := parseJSON(t, resp)["jobId"].(string)

	req, _ := http.NewRequest(http.MethodGet, "/api/result/"+jobID, nil)
	resp, err = ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
}

func TestDeleteEndpoint(t *testing.T) {
	ta := setupApp(t)

	resp, err := ta.app.Test(createUploadRequest(t, "song.wav"), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	jobID := parseJSON(t, resp)["jobId"].(string)

	req, _ := http.NewRequest(http.MethodDelete, "/api/jobs/"+jobID, nil)
	resp, err = ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	req, _ = http.NewRequest(http.MethodGet, "/api/status/"+jobID, nil)
	resp, _ = ta.app.Test(req, -1)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestDeleteEndpoint_Processing(t *testing.T) {
	ta := setupApp(t)

	resp, err := ta.app.Test(createUploadRequest(t, "song.wav"), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	jobID := parseJSON(t, resp)["jobId"].(string)

	if _, err := ta.registry.Update(jobID, func(j *model.Job) error {
		j.Status = model.JobStatusProcessing
		return nil
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, "/api/jobs/"+jobID, nil)
	resp, err = ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
}

func TestDownloadEndpoint(t *testing.T) {
	ta := setupApp(t)

	path := filepath.Join(ta.layout.OutputsDir, "result.mid")
	if err := os.WriteFile(path, []byte("MThd"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, "/files/result.mid", nil)
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "MThd" {
		t.Errorf("body = %q", body)
	}
}

func TestDownloadEndpoint_NotFound(t *testing.T) {
	ta := setupApp(t)

	req, _ := http.NewRequest(http.MethodGet, "/files/nope.mid", nil)
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)

	result := parseJSON(t, resp)
	errDetail := result["error"].(map[string]interface{})
	if errDetail["code"] != "ARTIFACT_NOT_FOUND" {
		t.Errorf("error code = %v", errDetail["code"])
	}
}
