// Package jobs runs periodic maintenance. Uploads are spooled to disk
// before being forwarded to the AI service; a request that dies mid-flight
// can strand its spool file, so a daily sweep reclaims them.
package jobs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"xrayqc/api/internal/config"
)

type SpoolSweeper struct {
	cron   *cron.Cron
	dir    string
	maxAge time.Duration
	log    zerolog.Logger
}

func NewSpoolSweeper(cfg config.UploadConfig, log zerolog.Logger) *SpoolSweeper {
	return &SpoolSweeper{
		cron:   cron.New(cron.WithSeconds()),
		dir:    cfg.SpoolDir,
		maxAge: cfg.SweepAfter,
		log:    log,
	}
}

func (s *SpoolSweeper) Start() error {
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *SpoolSweeper) Stop() {
	s.cron.Stop()
}

func (s *SpoolSweeper) sweep() {
	swept, err := sweepDir(s.dir, time.Now().Add(-s.maxAge))
	if err != nil {
		s.log.Error().Err(err).Str("dir", s.dir).Msg("spool sweep failed")
		return
	}
	if swept > 0 {
		s.log.Info().Int("files", swept).Str("dir", s.dir).Msg("stale spool files removed")
	}
}

// sweepDir removes regular files modified before the cutoff and reports
// how many were deleted.
func sweepDir(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	swept := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			swept++
		}
	}
	return swept, nil
}
