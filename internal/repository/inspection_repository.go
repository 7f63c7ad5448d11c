package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"xrayqc/api/internal/models"
)

var ErrLogNotFound = errors.New("inspection log not found")

type InspectionRepository struct {
	pool *pgxpool.Pool
}

func NewInspectionRepository(pool *pgxpool.Pool) *InspectionRepository {
	return &InspectionRepository{pool: pool}
}

const logColumns = `log_id, detector_id, timestamp, final_verdict, confidence_score, bbox_coords, image_url, is_false_positive, admin_feedback_user_id`

func scanLog(row pgx.Row) (models.InspectionLog, error) {
	var (
		log models.InspectionLog
		raw []byte
	)
	err := row.Scan(
		&log.LogID,
		&log.DetectorID,
		&log.Timestamp,
		&log.FinalVerdict,
		&log.ConfidenceScore,
		&raw,
		&log.ImageURL,
		&log.IsFalsePositive,
		&log.AdminFeedbackUserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.InspectionLog{}, ErrLogNotFound
		}
		return models.InspectionLog{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &log.BBoxCoords); err != nil {
			return models.InspectionLog{}, fmt.Errorf("decode bbox_coords: %w", err)
		}
	}
	return log, nil
}

// Insert appends one inspection result and returns the stored row with its
// server-assigned timestamp. An empty detection list persists as SQL NULL,
// never as an empty JSON array.
func (r *InspectionRepository) Insert(ctx context.Context, log models.InspectionLog) (models.InspectionLog, error) {
	var bbox []byte
	if len(log.BBoxCoords) > 0 {
		encoded, err := json.Marshal(log.BBoxCoords)
		if err != nil {
			return models.InspectionLog{}, fmt.Errorf("encode bbox_coords: %w", err)
		}
		bbox = encoded
	}

	query := `
		INSERT INTO inspection_logs (
			log_id, detector_id, final_verdict, confidence_score, bbox_coords, image_url
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING ` + logColumns

	return scanLog(r.pool.QueryRow(ctx, query,
		log.LogID,
		log.DetectorID,
		log.FinalVerdict,
		log.ConfidenceScore,
		bbox,
		log.ImageURL,
	))
}

func (r *InspectionRepository) GetByID(ctx context.Context, logID string) (models.InspectionLog, error) {
	query := `SELECT ` + logColumns + ` FROM inspection_logs WHERE log_id = $1`
	return scanLog(r.pool.QueryRow(ctx, query, logID))
}

func (r *InspectionRepository) ListRecent(ctx context.Context, limit, offset int) ([]models.InspectionLog, error) {
	query := `SELECT ` + logColumns + ` FROM inspection_logs ORDER BY timestamp DESC LIMIT $1 OFFSET $2`
	return r.list(ctx, query, limit, offset)
}

// Latest returns the most recent log, optionally scoped to one detector.
func (r *InspectionRepository) Latest(ctx context.Context, detectorID string) (models.InspectionLog, error) {
	if detectorID != "" {
		query := `SELECT ` + logColumns + ` FROM inspection_logs WHERE detector_id = $1 ORDER BY timestamp DESC LIMIT 1`
		return scanLog(r.pool.QueryRow(ctx, query, detectorID))
	}
	query := `SELECT ` + logColumns + ` FROM inspection_logs ORDER BY timestamp DESC LIMIT 1`
	return scanLog(r.pool.QueryRow(ctx, query))
}

// MarkFalsePositive records admin feedback without touching the verdict.
func (r *InspectionRepository) MarkFalsePositive(ctx context.Context, logID, userID string) (models.InspectionLog, error) {
	query := `
		UPDATE inspection_logs
		SET is_false_positive = true, admin_feedback_user_id = $2
		WHERE log_id = $1
		RETURNING ` + logColumns
	return scanLog(r.pool.QueryRow(ctx, query, logID, userID))
}

// HistoryFilter enumerates the optional history filters. Each set field maps
// to one fixed parameterized clause; values are never spliced into SQL text.
type HistoryFilter struct {
	DetectorID string
	StartDate  string // YYYY-MM-DD, inclusive
	EndDate    string // YYYY-MM-DD, inclusive (bounded by the next day)
	Verdict    string
}

func (f HistoryFilter) clauses() (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.DetectorID != "" {
		args = append(args, f.DetectorID)
		conds = append(conds, fmt.Sprintf("detector_id = $%d", len(args)))
	}
	if f.StartDate != "" {
		args = append(args, f.StartDate)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d::date", len(args)))
	}
	if f.EndDate != "" {
		args = append(args, f.EndDate)
		conds = append(conds, fmt.Sprintf("timestamp < ($%d::date + INTERVAL '1 day')", len(args)))
	}
	if f.Verdict != "" {
		args = append(args, f.Verdict)
		conds = append(conds, fmt.Sprintf("final_verdict = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *InspectionRepository) CountHistory(ctx context.Context, filter HistoryFilter) (int, error) {
	where, args := filter.clauses()
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inspection_logs`+where, args...).Scan(&total)
	return total, err
}

func (r *InspectionRepository) ListHistory(ctx context.Context, filter HistoryFilter, limit, offset int) ([]models.InspectionLog, error) {
	where, args := filter.clauses()
	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT `+logColumns+` FROM inspection_logs%s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)
	return r.list(ctx, query, args...)
}

// ReportFilter scopes the admin report query. Unlike history filters the
// bounds are raw timestamps compared inclusively on both ends.
type ReportFilter struct {
	StartDate  string
	EndDate    string
	DetectorID string
}

func (r *InspectionRepository) ListReport(ctx context.Context, filter ReportFilter) ([]models.InspectionLog, error) {
	var (
		conds []string
		args  []any
	)
	if filter.StartDate != "" {
		args = append(args, filter.StartDate)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if filter.EndDate != "" {
		args = append(args, filter.EndDate)
		conds = append(conds, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	if filter.DetectorID != "" {
		args = append(args, filter.DetectorID)
		conds = append(conds, fmt.Sprintf("detector_id = $%d", len(args)))
	}

	query := `SELECT ` + logColumns + ` FROM inspection_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	return r.list(ctx, query, args...)
}

// StatsSummary holds the dashboard KPI aggregates.
type StatsSummary struct {
	TotalScans int
	Defects    int
	DefectRate float64
}

// durationClauses maps the public duration keywords to fixed SQL fragments.
var durationClauses = map[string]string{
	"today": " WHERE timestamp >= CURRENT_DATE",
	"week":  " WHERE timestamp >= CURRENT_DATE - INTERVAL '7 days'",
	"month": " WHERE timestamp >= CURRENT_DATE - INTERVAL '30 days'",
}

// Summary computes scan and defect counts over the requested window. An
// empty window yields a zero defect rate rather than a division error.
func (r *InspectionRepository) Summary(ctx context.Context, duration string) (StatsSummary, error) {
	query := `
		SELECT
			COUNT(*) AS total_scans,
			COUNT(*) FILTER (WHERE final_verdict = 'NG') AS defects,
			COALESCE(ROUND(
				COUNT(*) FILTER (WHERE final_verdict = 'NG')::numeric /
				NULLIF(COUNT(*), 0),
				4
			), 0) AS defect_rate
		FROM inspection_logs` + durationClauses[duration]

	var summary StatsSummary
	err := r.pool.QueryRow(ctx, query).Scan(&summary.TotalScans, &summary.Defects, &summary.DefectRate)
	return summary, err
}

func (r *InspectionRepository) CountAll(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inspection_logs`).Scan(&total)
	return total, err
}

func (r *InspectionRepository) list(ctx context.Context, query string, args ...any) ([]models.InspectionLog, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.InspectionLog
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
