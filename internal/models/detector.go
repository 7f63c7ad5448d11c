package models

// DetectorStatus mirrors the detector_status table, which is maintained by
// the line-side tooling and read-only for this service.
type DetectorStatus struct {
	DetectorID    string
	CurrentStatus string
}
