package store

import (
	"context"
	"time"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// ============================================
// STATISTICS OPERATIONS
// ============================================

func (s *GORMStore) ListDailyStats(ctx context.Context, from, to time.Time) ([]*models.DailyStatistic, error) {
	return listOrdered[models.DailyStatistic](s.db, ctx, "date ASC", 0,
		"date >= ? AND date <= ?", models.StatDate(from), models.StatDate(to))
}

func (s *GORMStore) GetStatsSummary(ctx context.Context, days int) (*models.StatsSummary, error) {
	if days < 1 {
		days = 1
	}
	now := time.Now().UTC()
	fromDay := now.AddDate(0, 0, -(days - 1))
	summary := &models.StatsSummary{
		From: models.StatDate(fromDay),
		To:   models.StatDate(now),
	}

	err := s.db.WithContext(ctx).Model(&models.DailyStatistic{}).
		Select(`COALESCE(SUM(total_syncs), 0) AS total_syncs,
			COALESCE(SUM(successful_syncs), 0) AS successful_syncs,
			COALESCE(SUM(failed_syncs), 0) AS failed_syncs,
			COALESCE(SUM(auto_syncs), 0) AS auto_syncs,
			COALESCE(SUM(manual_syncs), 0) AS manual_syncs,
			COALESCE(SUM(sweep_syncs), 0) AS sweep_syncs,
			COALESCE(SUM(api_syncs), 0) AS api_syncs,
			COALESCE(SUM(roles_added), 0) AS roles_added,
			COALESCE(SUM(roles_removed), 0) AS roles_removed`).
		Where("date >= ? AND date <= ?", summary.From, summary.To).
		Scan(summary).Error
	if err != nil {
		return nil, err
	}

	start := time.Date(fromDay.Year(), fromDay.Month(), fromDay.Day(), 0, 0, 0, 0, time.UTC)
	err = s.db.WithContext(ctx).Model(&models.SyncSession{}).
		Where("started_at >= ? AND dry_run = ?", start, false).
		Distinct("subject_id").
		Count(&summary.UniqueSubjects).Error
	if err != nil {
		return nil, err
	}

	if summary.TotalSyncs > 0 {
		summary.SuccessRate = float64(summary.SuccessfulSyncs) / float64(summary.TotalSyncs) * 100
	}
	return summary, nil
}
