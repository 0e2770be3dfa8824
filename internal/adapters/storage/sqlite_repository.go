package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"maestro/internal/domain"
	"maestro/internal/logging"
	"maestro/internal/ports"
)

// SQLiteRepository implements ports.SessionRepository using GORM
type SQLiteRepository struct {
	db *gorm.DB
}

// Verify interface compliance at compile time
var _ ports.SessionRepository = (*SQLiteRepository)(nil)

// gormLogger wraps the maestro logger for GORM
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Logger.Error("gorm query error", "error", err, "duration", elapsed, "sql", sql, "rows", rows)
	} else if elapsed > 200*time.Millisecond {
		logging.Logger.Warn("slow query", "duration", elapsed, "sql", sql, "rows", rows)
	} else {
		logging.Logger.Debug("gorm query", "duration", elapsed, "sql", sql, "rows", rows)
	}
}

func newGormLogger() logger.Interface {
	if os.Getenv("MAESTRO_DEBUG") == "1" {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// NewSQLiteRepository creates a new SQLiteRepository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	// Expand home directory if present
	if len(dbPath) > 0 && dbPath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, dbPath[1:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		PrepareStmt: false,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		Logger:      newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent readers while an ingestion lane writes
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := db.AutoMigrate(
		&SessionModel{},
		&OutputRecordModel{},
		&ConversationMessageModel{},
		&PromptMarkerModel{},
		&ExecutionDiffModel{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(0)

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withRetry retries a database operation when SQLite reports busy/locked
func withRetry(fn func() error, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries", maxRetries)
}

// Get implements SessionReader.Get
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	var session SessionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil, err
	}

	result := sessionModelToDomain(session)
	return &result, nil
}

// List implements SessionReader.List
func (r *SQLiteRepository) List(ctx context.Context, includeArchived bool) ([]domain.Session, error) {
	var sessions []SessionModel

	err := withRetry(func() error {
		query := r.db.WithContext(ctx).Order("created_at DESC")
		if !includeArchived {
			query = query.Where("is_archived = ?", false)
		}
		return query.Find(&sessions).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Session, len(sessions))
	for i, s := range sessions {
		result[i] = sessionModelToDomain(s)
	}
	return result, nil
}

// Add implements SessionWriter.Add. The worktree path must be unique
// across non-archived sessions.
func (r *SQLiteRepository) Add(ctx context.Context, session domain.Session) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&SessionModel{}).Where("id = ?", session.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("session %s: %w", session.ID, domain.ErrSessionExists)
			}

			if session.WorktreePath != "" {
				if err := tx.Model(&SessionModel{}).
					Where("worktree_path = ? AND is_archived = ?", session.WorktreePath, false).
					Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return fmt.Errorf("worktree %s: %w", session.WorktreePath, domain.ErrWorktreeInUse)
				}
			}

			model := domainToSessionModel(session)
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			return nil
		})
	}, 3)
}

// Delete implements SessionWriter.Delete. All dependent output,
// conversation, marker, and diff rows go with the session in one
// transaction.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Where("id = ?", id).Delete(&SessionModel{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
			}

			for _, model := range []any{
				&OutputRecordModel{},
				&ConversationMessageModel{},
				&PromptMarkerModel{},
				&ExecutionDiffModel{},
			} {
				if err := tx.Where("session_id = ?", id).Delete(model).Error; err != nil {
					return fmt.Errorf("failed to delete dependent records: %w", err)
				}
			}
			return nil
		})
	}, 3)
}

// UpdateStatus implements SessionStateUpdater.UpdateStatus
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status domain.SessionStatus, lastError string) error {
	return withRetry(func() error {
		updates := map[string]any{
			"status":     string(status),
			"last_error": lastError,
		}
		if status == domain.StatusArchived {
			updates["is_archived"] = true
		}
		result := r.db.WithContext(ctx).Model(&SessionModel{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil
	}, 3)
}

// UpdateRunStarted implements SessionStateUpdater.UpdateRunStarted
func (r *SQLiteRepository) UpdateRunStarted(ctx context.Context, id string) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&SessionModel{}).Where("id = ?", id).
			Update("run_started_at", time.Now().UTC())
		if result.Error != nil {
			return fmt.Errorf("failed to update run start: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil
	}, 3)
}

// UpdateLastViewed implements SessionStateUpdater.UpdateLastViewed
func (r *SQLiteRepository) UpdateLastViewed(ctx context.Context, id string) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&SessionModel{}).Where("id = ?", id).
			Update("last_viewed_at", time.Now().UTC())
		if result.Error != nil {
			return fmt.Errorf("failed to update last viewed: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil
	}, 3)
}

// UpdateUpstreamSession implements SessionStateUpdater.UpdateUpstreamSession
func (r *SQLiteRepository) UpdateUpstreamSession(ctx context.Context, id, upstreamID string) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&SessionModel{}).Where("id = ?", id).
			Update("upstream_session_id", upstreamID)
		if result.Error != nil {
			return fmt.Errorf("failed to update upstream session: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil
	}, 3)
}

// Rename implements SessionMetadataUpdater.Rename
func (r *SQLiteRepository) Rename(ctx context.Context, id, displayName string) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&SessionModel{}).Where("id = ?", id).
			Update("display_name", displayName)
		if result.Error != nil {
			return fmt.Errorf("failed to rename session: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil
	}, 3)
}

// ToggleFavorite implements SessionMetadataUpdater.ToggleFavorite
func (r *SQLiteRepository) ToggleFavorite(ctx context.Context, id string) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var session SessionModel
			if err := tx.Where("id = ?", id).First(&session).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
				}
				return err
			}
			return tx.Model(&SessionModel{}).Where("id = ?", id).
				Update("is_favorite", !session.IsFavorite).Error
		})
	}, 3)
}

// SetArchived implements SessionMetadataUpdater.SetArchived
func (r *SQLiteRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	return withRetry(func() error {
		updates := map[string]any{"is_archived": archived}
		if archived {
			updates["status"] = string(domain.StatusArchived)
		}
		result := r.db.WithContext(ctx).Model(&SessionModel{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to set archived: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil
	}, 3)
}
