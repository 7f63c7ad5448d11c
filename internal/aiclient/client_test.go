package aiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrayqc/api/internal/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client := New(config.AIConfig{BaseURL: "http://ai.local", Timeout: 30 * time.Second}, zerolog.Nop())
	httpmock.ActivateNonDefault(client.http)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestPredictDecodesVerdict(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ai.local/predict",
		httpmock.NewStringResponder(200, `{
			"verdict": "NG",
			"confidence": 0.87,
			"detections": [
				{"class_name": "scratch", "confidence": 0.9, "bbox": {"x": 10, "y": 20, "width": 30, "height": 40}}
			],
			"total_defects": 1,
			"image_url": "u1",
			"annotated_image_url": "u2",
			"processing_time_ms": 120.5
		}`))

	prediction, err := client.Predict(context.Background(), "sample.jpg", strings.NewReader("fake-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "NG", prediction.Verdict)
	assert.InDelta(t, 0.87, prediction.Confidence, 1e-9)
	require.Len(t, prediction.Detections, 1)
	assert.Equal(t, "scratch", prediction.Detections[0].ClassName)
	assert.Equal(t, 10, prediction.Detections[0].BBox.X)
	assert.Equal(t, 40, prediction.Detections[0].BBox.Height)
	assert.Equal(t, 1, prediction.TotalDefects)
	assert.Equal(t, "u2", prediction.AnnotatedImageURL)
	assert.InDelta(t, 120.5, prediction.ProcessingTimeMS, 1e-9)
}

func TestPredictConnectionFailureIsUnavailable(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ai.local/predict",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := client.Predict(context.Background(), "sample.jpg", strings.NewReader("fake-bytes"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPredictUpstreamErrorIsNotUnavailable(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ai.local/predict",
		httpmock.NewStringResponder(500, `{"detail": "Model not loaded"}`))

	_, err := client.Predict(context.Background(), "sample.jpg", strings.NewReader("fake-bytes"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "Model not loaded")
}

func TestPredictSendsMultipartFileField(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder("POST", "http://ai.local/predict",
		func(req *http.Request) (*http.Response, error) {
			if err := req.ParseMultipartForm(1 << 20); err != nil {
				return httpmock.NewStringResponse(400, "bad multipart"), nil
			}
			file, header, err := req.FormFile("file")
			if err != nil {
				return httpmock.NewStringResponse(400, "missing file field"), nil
			}
			defer file.Close()
			if header.Filename != "sample.jpg" {
				return httpmock.NewStringResponse(400, "wrong filename"), nil
			}
			return httpmock.NewStringResponse(200, `{"verdict":"OK","confidence":0.99,"detections":[],"total_defects":0,"image_url":"u1","annotated_image_url":"u2","processing_time_ms":10}`), nil
		})

	prediction, err := client.Predict(context.Background(), "sample.jpg", strings.NewReader("fake-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "OK", prediction.Verdict)
	assert.Empty(t, prediction.Detections)
}
