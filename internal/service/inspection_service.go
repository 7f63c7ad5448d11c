package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"xrayqc/api/internal/aiclient"
	"xrayqc/api/internal/config"
	"xrayqc/api/internal/models"
)

var (
	ErrDirNotFound   = errors.New("image directory does not exist")
	ErrNoImages      = errors.New("no image files found in directory")
	ErrImageTooLarge = errors.New("image exceeds size limit")
	ErrEmptyImage    = errors.New("empty image payload")
)

// Predictor is the external verdict source.
type Predictor interface {
	Predict(ctx context.Context, filename string, image io.Reader) (aiclient.Prediction, error)
}

// InspectionStore persists inspection logs.
type InspectionStore interface {
	Insert(ctx context.Context, log models.InspectionLog) (models.InspectionLog, error)
}

// Archiver keeps an audit copy of original image bytes. May be nil.
type Archiver interface {
	Archive(ctx context.Context, key string, data []byte, contentType string) error
}

// EventPublisher announces persisted inspections. May be nil.
type EventPublisher interface {
	PublishInspection(ctx context.Context, log models.InspectionLog) error
}

type InspectionService struct {
	logs    InspectionStore
	ai      Predictor
	archive Archiver
	events  EventPublisher
	cfg     *config.AppConfig
	log     zerolog.Logger
	now     func() time.Time
}

func NewInspectionService(logs InspectionStore, ai Predictor, archive Archiver, events EventPublisher, cfg *config.AppConfig, log zerolog.Logger) *InspectionService {
	return &InspectionService{
		logs:    logs,
		ai:      ai,
		archive: archive,
		events:  events,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

type InspectInput struct {
	DetectorID string
	Filename   string
	Image      io.Reader
}

type InspectResult struct {
	Log              models.InspectionLog
	TotalDefects     int
	ProcessingTimeMS float64
}

// Inspect runs one image through the full pipeline: spool to disk, forward
// to the AI service, derive the log id from the verdict, persist exactly one
// row. No row is written when the AI call fails.
func (s *InspectionService) Inspect(ctx context.Context, input InspectInput) (InspectResult, error) {
	maxSize := s.cfg.Upload.MaxSizeBytes
	data, err := io.ReadAll(io.LimitReader(input.Image, maxSize+1))
	if err != nil {
		return InspectResult{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > maxSize {
		return InspectResult{}, ErrImageTooLarge
	}
	if len(data) == 0 {
		return InspectResult{}, ErrEmptyImage
	}

	spoolPath, err := s.spool(input.Filename, data)
	if err != nil {
		return InspectResult{}, fmt.Errorf("spool image: %w", err)
	}
	defer os.Remove(spoolPath)

	prediction, err := s.ai.Predict(ctx, input.Filename, bytes.NewReader(data))
	if err != nil {
		return InspectResult{}, err
	}

	stored, err := s.persist(ctx, input.DetectorID, prediction)
	if err != nil {
		return InspectResult{}, err
	}

	s.archiveOriginal(ctx, stored.LogID, input.Filename, data)
	s.publish(ctx, stored)

	return InspectResult{
		Log:              stored,
		TotalDefects:     prediction.TotalDefects,
		ProcessingTimeMS: prediction.ProcessingTimeMS,
	}, nil
}

// persist maps the AI verdict into one InspectionLog row. The log id is
// prefixed by verdict so downstream views can spot defect records without
// re-deriving the verdict.
func (s *InspectionService) persist(ctx context.Context, detectorID string, prediction aiclient.Prediction) (models.InspectionLog, error) {
	verdict := models.Verdict(prediction.Verdict)

	prefix := "OK"
	imageURL := prediction.ImageURL
	if verdict == models.VerdictNG {
		prefix = "ERR"
		imageURL = prediction.AnnotatedImageURL
	}
	logID := prefix + strconv.FormatInt(s.now().UnixMilli(), 10)

	var bboxes []models.BBox
	for _, detection := range prediction.Detections {
		bboxes = append(bboxes, models.BBox{
			X:          detection.BBox.X,
			Y:          detection.BBox.Y,
			Width:      detection.BBox.Width,
			Height:     detection.BBox.Height,
			Class:      detection.ClassName,
			Confidence: detection.Confidence,
		})
	}

	stored, err := s.logs.Insert(ctx, models.InspectionLog{
		LogID:           logID,
		DetectorID:      detectorID,
		FinalVerdict:    verdict,
		ConfidenceScore: prediction.Confidence,
		BBoxCoords:      bboxes,
		ImageURL:        imageURL,
	})
	if err != nil {
		return models.InspectionLog{}, fmt.Errorf("save inspection log: %w", err)
	}
	return stored, nil
}

type BatchItemResult struct {
	File    string         `json:"file"`
	LogID   string         `json:"log_id,omitempty"`
	Verdict models.Verdict `json:"verdict,omitempty"`
	Defects *int           `json:"defects,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type BatchResult struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Results    []BatchItemResult `json:"results"`
}

// BatchInspect runs the single-image pipeline over every image file in a
// directory, strictly in order. A failing file is recorded and skipped;
// the batch always completes with a summary.
func (s *InspectionService) BatchInspect(ctx context.Context, detectorID, imageDir string) (BatchResult, error) {
	info, err := os.Stat(imageDir)
	if err != nil || !info.IsDir() {
		return BatchResult{}, ErrDirNotFound
	}

	entries, err := os.ReadDir(imageDir)
	if err != nil {
		return BatchResult{}, fmt.Errorf("read directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isImageFilename(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return BatchResult{}, ErrNoImages
	}

	result := BatchResult{
		Total:   len(files),
		Results: make([]BatchItemResult, 0, len(files)),
	}

	for _, name := range files {
		item := s.inspectFile(ctx, detectorID, imageDir, name)
		if item.Error != "" {
			result.Failed++
		} else {
			result.Successful++
		}
		result.Results = append(result.Results, item)
	}

	return result, nil
}

func (s *InspectionService) inspectFile(ctx context.Context, detectorID, dir, name string) BatchItemResult {
	file, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return BatchItemResult{File: name, Error: err.Error()}
	}
	defer file.Close()

	inspected, err := s.Inspect(ctx, InspectInput{
		DetectorID: detectorID,
		Filename:   name,
		Image:      file,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("batch item failed")
		return BatchItemResult{File: name, Error: err.Error()}
	}

	defects := inspected.TotalDefects
	return BatchItemResult{
		File:    name,
		LogID:   inspected.Log.LogID,
		Verdict: inspected.Log.FinalVerdict,
		Defects: &defects,
	}
}

func (s *InspectionService) spool(filename string, data []byte) (string, error) {
	dir := s.cfg.Upload.SpoolDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, "upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := tmp.Write(data); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (s *InspectionService) archiveOriginal(ctx context.Context, logID, filename string, data []byte) {
	if s.archive == nil {
		return
	}
	key := s.now().UTC().Format("2006/01/02") + "/" + logID + strings.ToLower(filepath.Ext(filename))
	if err := s.archive.Archive(ctx, key, data, contentTypeFor(filename)); err != nil {
		s.log.Warn().Err(err).Str("log_id", logID).Msg("archive original failed")
	}
}

func (s *InspectionService) publish(ctx context.Context, log models.InspectionLog) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishInspection(ctx, log); err != nil {
		s.log.Warn().Err(err).Str("log_id", log.LogID).Msg("publish inspection event failed")
	}
}

func isImageFilename(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func contentTypeFor(filename string) string {
	if strings.ToLower(filepath.Ext(filename)) == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}
