package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// ============================================
// SYNC AUDIT OPERATIONS
// ============================================

func (s *GORMStore) RecordSync(ctx context.Context, rec *models.SyncRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return writeRecord(tx, rec)
	})
}

func (s *GORMStore) FlushBatch(ctx context.Context, recs []*models.SyncRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range recs {
			if err := writeRecord(tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeRecord appends the session and its log lines, then folds the outcome
// into sync_state, statistics and role_assignments. Dry runs only leave the
// session and log lines behind.
func writeRecord(tx *gorm.DB, rec *models.SyncRecord) error {
	sess := &rec.Session
	if err := tx.Create(sess).Error; err != nil {
		return err
	}
	if len(rec.Logs) > 0 {
		for i := range rec.Logs {
			rec.Logs[i].SessionID = sess.ID
		}
		if err := tx.Create(&rec.Logs).Error; err != nil {
			return err
		}
	}
	if sess.DryRun {
		return nil
	}

	now := time.Now()
	if err := bumpSyncState(tx, sess, now); err != nil {
		return err
	}
	if err := bumpDailyStats(tx, sess, now); err != nil {
		return err
	}

	if len(rec.Assignments) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec.Assignments).Error; err != nil {
			return err
		}
	}
	if len(rec.Revoked) > 0 {
		if err := tx.Where("subject_id = ? AND target_role_id IN ?", sess.SubjectID, rec.Revoked).
			Delete(&models.RoleAssignment{}).Error; err != nil {
			return err
		}
	}
	return nil
}

func bumpSyncState(tx *gorm.DB, sess *models.SyncSession, now time.Time) error {
	seed := &models.SyncState{SubjectID: sess.SubjectID, TargetCommunityID: sess.TargetCommunityID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return err
	}
	return tx.Model(&models.SyncState{}).
		Where("subject_id = ? AND target_community_id = ?", sess.SubjectID, sess.TargetCommunityID).
		Updates(map[string]any{
			"last_sync_at":    sess.CompletedAt,
			"last_session_id": sess.ID,
			"last_success":    sess.Success,
			"sync_count":      gorm.Expr("sync_count + ?", 1),
			"updated_at":      now,
		}).Error
}

func bumpDailyStats(tx *gorm.DB, sess *models.SyncSession, now time.Time) error {
	date := models.StatDate(sess.StartedAt)
	seed := &models.DailyStatistic{Date: date}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return err
	}

	updates := map[string]any{
		"total_syncs":   gorm.Expr("total_syncs + ?", 1),
		"roles_added":   gorm.Expr("roles_added + ?", len(sess.RolesAdded)),
		"roles_removed": gorm.Expr("roles_removed + ?", len(sess.RolesRemoved)),
		"updated_at":    now,
	}
	if sess.Success {
		updates["successful_syncs"] = gorm.Expr("successful_syncs + ?", 1)
	} else {
		updates["failed_syncs"] = gorm.Expr("failed_syncs + ?", 1)
	}
	if col := triggerColumn(sess.TriggerType); col != "" {
		updates[col] = gorm.Expr(col+" + ?", 1)
	}

	return tx.Model(&models.DailyStatistic{}).Where("date = ?", date).Updates(updates).Error
}

func triggerColumn(trigger string) string {
	switch trigger {
	case models.TriggerAuto:
		return "auto_syncs"
	case models.TriggerManual:
		return "manual_syncs"
	case models.TriggerSweep:
		return "sweep_syncs"
	case models.TriggerAPI:
		return "api_syncs"
	default:
		return ""
	}
}

func (s *GORMStore) GetSession(ctx context.Context, id string) (*models.SyncSession, error) {
	return getByField[models.SyncSession](s.db, ctx, "id", id, models.ErrSessionNotFound)
}

func (s *GORMStore) ListSessions(ctx context.Context, subject uint64, limit int) ([]*models.SyncSession, error) {
	if subject == 0 {
		return listOrdered[models.SyncSession](s.db, ctx, "started_at DESC", limit)
	}
	return listOrdered[models.SyncSession](s.db, ctx, "started_at DESC", limit, "subject_id = ?", subject)
}

func (s *GORMStore) ListSyncLogs(ctx context.Context, subject uint64, limit int) ([]*models.SyncLog, error) {
	return listOrdered[models.SyncLog](s.db, ctx, "id DESC", limit, "subject_id = ?", subject)
}

func (s *GORMStore) GetSyncState(ctx context.Context, subject, target uint64) (*models.SyncState, error) {
	var state models.SyncState
	err := s.db.WithContext(ctx).
		Where("subject_id = ? AND target_community_id = ?", subject, target).
		First(&state).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrSyncStateNotFound)
	}
	return &state, nil
}

func (s *GORMStore) ListAssignments(ctx context.Context, subject uint64) ([]*models.RoleAssignment, error) {
	return listOrdered[models.RoleAssignment](s.db, ctx, "target_role_id ASC, id ASC", 0, "subject_id = ?", subject)
}
