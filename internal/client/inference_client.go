package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stemscribe/api/internal/config"
)

// InferenceEngine defines the interface for the model inference sidecar that
// performs source separation, note transcription and audio analysis.
type InferenceEngine interface {
	Separate(ctx context.Context, req *SeparateRequest) (*SeparateResponse, error)
	Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResponse, error)
	Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error)
	HealthCheck(ctx context.Context) error
}

// InferenceClient implements InferenceEngine for the Python microservice
type InferenceClient struct {
	httpClient *http.Client
	baseURL    string
}

// SeparateRequest asks the sidecar to split a mix into stems
type SeparateRequest struct {
	InputPath string `json:"input_path"`
	OutputDir string `json:"output_dir"`
}

// SeparateResponse reports the stem files the separator wrote
type SeparateResponse struct {
	Stems     map[string]string `json:"stems"` // stem name -> audio path
	Separator string            `json:"separator"`
}

// TranscribeRequest asks the sidecar to transcribe one audio file to MIDI
type TranscribeRequest struct {
	InputPath           string  `json:"input_path"`
	OutputPath          string  `json:"output_path"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
}

// TranscribeResponse reports the produced MIDI file
type TranscribeResponse struct {
	MidiPath  string `json:"midi_path"`
	NoteCount int    `json:"note_count"`
	Model     string `json:"model"`
}

// AnalyzeRequest asks the sidecar for advisory audio metadata
type AnalyzeRequest struct {
	InputPath string `json:"input_path"`
}

// AnalyzeResponse carries tempo and beat analysis of the source audio
type AnalyzeResponse struct {
	Duration   float64   `json:"duration"`
	Tempo      float64   `json:"tempo"`
	Beats      []float64 `json:"beats"`
	TotalBeats int       `json:"total_beats"`
}

// NewInferenceClient creates a new inference sidecar client
func NewInferenceClient(cfg *config.InferenceConfig) *InferenceClient {
	return &InferenceClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// Separate runs source separation on a mix
func (c *InferenceClient) Separate(ctx context.Context, req *SeparateRequest) (*SeparateResponse, error) {
	var result SeparateResponse
	if err := c.post(ctx, "/separate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Transcribe runs note transcription on one audio file
func (c *InferenceClient) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResponse, error) {
	var result TranscribeResponse
	if err := c.post(ctx, "/transcribe", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Analyze extracts tempo and beat metadata from audio
func (c *InferenceClient) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	var result AnalyzeResponse
	if err := c.post(ctx, "/analyze", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the inference sidecar is available
func (c *InferenceClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// post sends a POST request with JSON body and parses the response
func (c *InferenceClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inference service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *InferenceClient) IsConfigured() bool {
	return c.baseURL != ""
}
