package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l5rank"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
)

// FrameRow is a persisted frame summary.
type FrameRow struct {
	FrameID      string    `json:"frame_id"`
	Stamp        time.Time `json:"stamp"`
	LocalPoints  int       `json:"local_points"`
	Cameras      int       `json:"cameras"`
	CameraErrors int       `json:"camera_errors"`
	SinkErrors   int       `json:"sink_errors"`
	DurationMs   float64   `json:"duration_ms"`
}

// ClusterRow is one persisted cluster of a ranked report.
type ClusterRow struct {
	FrameID  string    `json:"frame_id"`
	CameraID string    `json:"camera_id"`
	Stamp    time.Time `json:"stamp"`
	l5rank.ClusterSummary
}

// RecordFrame stores the summary of a processed frame. Recording the same
// frame twice replaces the earlier row.
func (s *Store) RecordFrame(ctx context.Context, res *pipeline.FrameResult) error {
	_, err := s.ExecContext(ctx, `
		INSERT OR REPLACE INTO frames (
			frame_id, stamp_unix_nanos, local_points, cameras,
			camera_errors, sink_errors, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.FrameID, res.Stamp.UnixNano(), res.LocalPoints, len(res.Cameras),
		len(res.CameraErrors), len(res.SinkErrors), float64(res.Duration)/float64(time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("failed to record frame %s: %w", res.FrameID, err)
	}
	return nil
}

// PublishClusters stores a ranked cluster report, replacing any earlier
// report for the same frame and camera.
func (s *Store) PublishClusters(ctx context.Context, report pipeline.ClusterReport) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clusters WHERE frame_id = ? AND camera_id = ?`,
		report.FrameID, report.CameraID); err != nil {
		return fmt.Errorf("failed to clear clusters: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clusters (
			frame_id, camera_id, stamp_unix_nanos, rank,
			x, y, z, width, height, depth, distance, points
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cluster insert: %w", err)
	}
	defer stmt.Close()

	stamp := report.Stamp.UnixNano()
	for _, c := range report.Summaries {
		if _, err := stmt.ExecContext(ctx, report.FrameID, report.CameraID, stamp, c.ID,
			c.X, c.Y, c.Z, c.Width, c.Height, c.Depth, c.Distance, c.Points); err != nil {
			return fmt.Errorf("failed to insert cluster %d: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clusters: %w", err)
	}
	return nil
}

// RecentFrames returns up to limit frames, newest stamp first.
func (s *Store) RecentFrames(ctx context.Context, limit int) ([]FrameRow, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT frame_id, stamp_unix_nanos, local_points, cameras,
		       camera_errors, sink_errors, duration_ms
		FROM frames
		ORDER BY stamp_unix_nanos DESC, created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []FrameRow
	for rows.Next() {
		var r FrameRow
		var stamp int64
		if err := rows.Scan(&r.FrameID, &stamp, &r.LocalPoints, &r.Cameras,
			&r.CameraErrors, &r.SinkErrors, &r.DurationMs); err != nil {
			return nil, err
		}
		r.Stamp = time.Unix(0, stamp).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// FrameClusters returns the clusters stored for a frame, ordered by camera
// and rank. An empty cameraID matches every camera.
func (s *Store) FrameClusters(ctx context.Context, frameID, cameraID string) ([]ClusterRow, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT frame_id, camera_id, stamp_unix_nanos, rank,
		       x, y, z, width, height, depth, distance, points
		FROM clusters
		WHERE frame_id = ? AND (? = '' OR camera_id = ?)
		ORDER BY camera_id, rank`, frameID, cameraID, cameraID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	var out []ClusterRow
	for rows.Next() {
		var r ClusterRow
		var stamp int64
		if err := rows.Scan(&r.FrameID, &r.CameraID, &stamp, &r.ID,
			&r.X, &r.Y, &r.Z, &r.Width, &r.Height, &r.Depth, &r.Distance, &r.Points); err != nil {
			return nil, err
		}
		r.Stamp = time.Unix(0, stamp).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
