package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"maestro/internal/domain"
	"maestro/internal/ports"
)

// Verify interface compliance at compile time
var _ ports.OutputStore = (*SQLiteRepository)(nil)

// AppendNext implements OutputAppender.AppendNext. The insert succeeds
// only when record.Seq equals the next sequence number for the session,
// checked and written in one transaction so a racing writer cannot slip
// a record in between.
func (r *SQLiteRepository) AppendNext(ctx context.Context, record domain.OutputRecord) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var next int64
			err := tx.Model(&OutputRecordModel{}).
				Where("session_id = ?", record.SessionID).
				Select("COALESCE(MAX(seq) + 1, 0)").
				Scan(&next).Error
			if err != nil {
				return err
			}

			if record.Seq != next {
				return &domain.SequencingFault{
					SessionID: record.SessionID,
					Want:      next,
					Got:       record.Seq,
				}
			}

			model := domainToRecordModel(record)
			if model.CreatedAt.IsZero() {
				model.CreatedAt = time.Now().UTC()
			}
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("failed to append output record: %w", err)
			}
			return nil
		})
	}, 3)
}

// Replay implements OutputReader.Replay
func (r *SQLiteRepository) Replay(ctx context.Context, sessionID string) ([]domain.OutputRecord, error) {
	return r.Range(ctx, sessionID, 0, -1)
}

// Range implements OutputReader.Range
func (r *SQLiteRepository) Range(ctx context.Context, sessionID string, fromSeq, toSeq int64) ([]domain.OutputRecord, error) {
	var models []OutputRecordModel

	err := withRetry(func() error {
		query := r.db.WithContext(ctx).
			Where("session_id = ? AND seq >= ?", sessionID, fromSeq).
			Order("seq ASC")
		if toSeq >= 0 {
			query = query.Where("seq < ?", toSeq)
		}
		return query.Find(&models).Error
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to read output records: %w", err)
	}

	records := make([]domain.OutputRecord, len(models))
	for i, m := range models {
		records[i] = recordModelToDomain(m)
	}
	return records, nil
}

// NextSeq implements OutputReader.NextSeq
func (r *SQLiteRepository) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	var next int64
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Model(&OutputRecordModel{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(seq) + 1, 0)").
			Scan(&next).Error
	}, 3)
	if err != nil {
		return 0, fmt.Errorf("failed to read next sequence: %w", err)
	}
	return next, nil
}

// SaveMessage implements ConversationStore.SaveMessage
func (r *SQLiteRepository) SaveMessage(ctx context.Context, msg domain.ConversationMessage) error {
	return withRetry(func() error {
		model := ConversationMessageModel{
			SessionID: msg.SessionID,
			Seq:       msg.Seq,
			Role:      string(msg.Role),
			Text:      msg.Text,
			CreatedAt: time.Now().UTC(),
		}
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return fmt.Errorf("failed to save conversation message: %w", err)
		}
		return nil
	}, 3)
}

// Messages implements ConversationStore.Messages
func (r *SQLiteRepository) Messages(ctx context.Context, sessionID string) ([]domain.ConversationMessage, error) {
	var models []ConversationMessageModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Order("seq ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation messages: %w", err)
	}

	messages := make([]domain.ConversationMessage, len(models))
	for i, m := range models {
		messages[i] = domain.ConversationMessage{
			SessionID: m.SessionID,
			Seq:       m.Seq,
			Role:      domain.MessageRole(m.Role),
			Text:      m.Text,
		}
	}
	return messages, nil
}

// SaveMarker implements MarkerStore.SaveMarker
func (r *SQLiteRepository) SaveMarker(ctx context.Context, marker domain.PromptMarker) error {
	return withRetry(func() error {
		model := PromptMarkerModel{
			SessionID: marker.SessionID,
			StartSeq:  marker.StartSeq,
			EndSeq:    marker.EndSeq,
			Prompt:    marker.Prompt,
			CreatedAt: time.Now().UTC(),
		}
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return fmt.Errorf("failed to save prompt marker: %w", err)
		}
		return nil
	}, 3)
}

// CompleteMarker implements MarkerStore.CompleteMarker
func (r *SQLiteRepository) CompleteMarker(ctx context.Context, sessionID string, startSeq, endSeq int64) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&PromptMarkerModel{}).
			Where("session_id = ? AND start_seq = ?", sessionID, startSeq).
			Update("end_seq", endSeq)
		if result.Error != nil {
			return fmt.Errorf("failed to complete prompt marker: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("prompt marker at seq %d for session %s not found", startSeq, sessionID)
		}
		return nil
	}, 3)
}

// Markers implements MarkerStore.Markers
func (r *SQLiteRepository) Markers(ctx context.Context, sessionID string) ([]domain.PromptMarker, error) {
	var models []PromptMarkerModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Order("start_seq ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt markers: %w", err)
	}

	markers := make([]domain.PromptMarker, len(models))
	for i, m := range models {
		markers[i] = domain.PromptMarker{
			SessionID: m.SessionID,
			StartSeq:  m.StartSeq,
			EndSeq:    m.EndSeq,
			Prompt:    m.Prompt,
			CreatedAt: m.CreatedAt,
		}
	}
	return markers, nil
}

// SaveDiff implements MarkerStore.SaveDiff
func (r *SQLiteRepository) SaveDiff(ctx context.Context, diff domain.ExecutionDiff) error {
	return withRetry(func() error {
		model := domainToDiffModel(diff)
		if model.CreatedAt.IsZero() {
			model.CreatedAt = time.Now().UTC()
		}
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return fmt.Errorf("failed to save execution diff: %w", err)
		}
		return nil
	}, 3)
}

// Diffs implements MarkerStore.Diffs
func (r *SQLiteRepository) Diffs(ctx context.Context, sessionID string) ([]domain.ExecutionDiff, error) {
	var models []ExecutionDiffModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Order("seq ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to read execution diffs: %w", err)
	}

	diffs := make([]domain.ExecutionDiff, len(models))
	for i, m := range models {
		diffs[i] = diffModelToDomain(m)
	}
	return diffs, nil
}
