package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"xrayqc/api/internal/models"
)

var ErrDetectorNotFound = errors.New("detector not found")

type DetectorRepository struct {
	pool *pgxpool.Pool
}

func NewDetectorRepository(pool *pgxpool.Pool) *DetectorRepository {
	return &DetectorRepository{pool: pool}
}

// CurrentStatus reads one detector's status, or any detector's when no id
// is given (the line runs a small fixed set of stations).
func (r *DetectorRepository) CurrentStatus(ctx context.Context, detectorID string) (models.DetectorStatus, error) {
	var (
		row pgx.Row
	)
	if detectorID != "" {
		row = r.pool.QueryRow(ctx, `SELECT detector_id, current_status FROM detector_status WHERE detector_id = $1`, detectorID)
	} else {
		row = r.pool.QueryRow(ctx, `SELECT detector_id, current_status FROM detector_status LIMIT 1`)
	}

	var status models.DetectorStatus
	if err := row.Scan(&status.DetectorID, &status.CurrentStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DetectorStatus{}, ErrDetectorNotFound
		}
		return models.DetectorStatus{}, err
	}
	return status, nil
}
