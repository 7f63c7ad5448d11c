// Package aiclient talks to the external defect-detection service. The
// service owns the model and the image hosting; this client only relays
// bytes and decodes the verdict.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"xrayqc/api/internal/config"
)

// ErrUnavailable marks transport-level failures (connection refused, DNS,
// timeout). Callers map it to 503 so clients can tell "service down" from
// "inspection failed".
var ErrUnavailable = errors.New("ai service unavailable")

type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Detection struct {
	ClassName  string      `json:"class_name"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

type Prediction struct {
	Verdict           string      `json:"verdict"`
	Confidence        float64     `json:"confidence"`
	Detections        []Detection `json:"detections"`
	TotalDefects      int         `json:"total_defects"`
	ImageURL          string      `json:"image_url"`
	AnnotatedImageURL string      `json:"annotated_image_url"`
	ProcessingTimeMS  float64     `json:"processing_time_ms"`
}

type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func New(cfg config.AIConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

// Predict uploads one image as a multipart "file" field and returns the
// structured verdict.
func (c *Client) Predict(ctx context.Context, filename string, image io.Reader) (Prediction, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Prediction{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return Prediction{}, fmt.Errorf("copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Prediction{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", &body)
	if err != nil {
		return Prediction{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("url", c.baseURL+"/predict").Msg("ai service unreachable")
		return Prediction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Prediction{}, fmt.Errorf("ai service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var prediction Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return Prediction{}, fmt.Errorf("decode prediction: %w", err)
	}

	return prediction, nil
}
