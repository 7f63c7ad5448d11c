package models

import "time"

type Verdict string

const (
	VerdictOK Verdict = "OK"
	VerdictNG Verdict = "NG"
)

// BBox is one detected defect region: an axis-aligned rectangle plus the
// defect class and per-detection confidence.
type BBox struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// InspectionLog is one durable inspection result. Rows are append-only;
// the only mutation ever applied is the false-positive feedback flag.
type InspectionLog struct {
	LogID               string    `json:"log_id"`
	DetectorID          string    `json:"detector_id"`
	Timestamp           time.Time `json:"timestamp"`
	FinalVerdict        Verdict   `json:"final_verdict"`
	ConfidenceScore     float64   `json:"confidence_score"`
	BBoxCoords          []BBox    `json:"bbox_coords"` // nil when no detections
	ImageURL            string    `json:"image_url"`
	IsFalsePositive     bool      `json:"is_false_positive"`
	AdminFeedbackUserID *string   `json:"admin_feedback_user_id,omitempty"`
}
