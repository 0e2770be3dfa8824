package storage

import "time"

// SessionModel is the GORM model for the sessions table
type SessionModel struct {
	ID                string    `gorm:"primaryKey"`
	DisplayName       string    `gorm:"not null;default:''"`
	InitialPrompt     string    `gorm:"default:''"`
	WorktreePath      string    `gorm:"default:'';index:idx_worktree_path"`
	BranchName        string    `gorm:"default:''"`
	Status            string    `gorm:"not null;default:'initializing';check:status IN ('initializing','running','waiting','stopped','error','archived')"`
	UpstreamSessionID string    `gorm:"default:''"`
	PermissionMode    string    `gorm:"default:'default'"`
	Model             string    `gorm:"default:''"`
	IsArchived        bool      `gorm:"not null;default:false;index:idx_archived"`
	IsFavorite        bool      `gorm:"not null;default:false"`
	LastError         string    `gorm:"default:''"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastViewedAt      time.Time
	RunStartedAt      *time.Time `gorm:"default:null"`
}

// TableName specifies the table name for GORM
func (SessionModel) TableName() string { return "sessions" }

// OutputRecordModel is the GORM model for the append-only output log.
// (session_id, seq) is the primary key; rows are never updated.
type OutputRecordModel struct {
	SessionID string `gorm:"primaryKey;index:idx_output_session"`
	Seq       int64  `gorm:"primaryKey;autoIncrement:false"`
	Kind      string `gorm:"not null"`
	Payload   []byte
	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (OutputRecordModel) TableName() string { return "output_records" }

// ConversationMessageModel is the GORM model for the derived conversation
// projection. Ordered by the same sequence space as output records.
type ConversationMessageModel struct {
	SessionID string `gorm:"primaryKey"`
	Seq       int64  `gorm:"primaryKey;autoIncrement:false"`
	Role      string `gorm:"not null"`
	Text      string
	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (ConversationMessageModel) TableName() string { return "conversation_messages" }

// PromptMarkerModel is the GORM model for prompt navigation bookmarks
type PromptMarkerModel struct {
	SessionID string `gorm:"primaryKey"`
	StartSeq  int64  `gorm:"primaryKey;autoIncrement:false"`
	EndSeq    *int64 `gorm:"default:null"`
	Prompt    string
	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (PromptMarkerModel) TableName() string { return "prompt_markers" }

// ExecutionDiffModel is the GORM model for per-prompt change-set snapshots
type ExecutionDiffModel struct {
	SessionID     string `gorm:"primaryKey"`
	Seq           int64  `gorm:"primaryKey;autoIncrement:false"`
	FilesChanged  string // newline-separated paths
	Summary       string
	CommitMessage string
	CreatedAt     time.Time
}

// TableName specifies the table name for GORM
func (ExecutionDiffModel) TableName() string { return "execution_diffs" }
