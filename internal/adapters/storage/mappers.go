package storage

import (
	"strings"

	"maestro/internal/domain"
)

// sessionModelToDomain converts a SessionModel (GORM) to domain.Session
func sessionModelToDomain(m SessionModel) domain.Session {
	return domain.Session{
		ID:                m.ID,
		DisplayName:       m.DisplayName,
		InitialPrompt:     m.InitialPrompt,
		WorktreePath:      m.WorktreePath,
		BranchName:        m.BranchName,
		Status:            domain.SessionStatus(m.Status),
		UpstreamSessionID: m.UpstreamSessionID,
		PermissionMode:    domain.PermissionMode(m.PermissionMode),
		Model:             m.Model,
		IsArchived:        m.IsArchived,
		IsFavorite:        m.IsFavorite,
		LastError:         m.LastError,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		LastViewedAt:      m.LastViewedAt,
		RunStartedAt:      m.RunStartedAt,
	}
}

// domainToSessionModel converts a domain.Session to SessionModel (GORM)
func domainToSessionModel(s domain.Session) SessionModel {
	return SessionModel{
		ID:                s.ID,
		DisplayName:       s.DisplayName,
		InitialPrompt:     s.InitialPrompt,
		WorktreePath:      s.WorktreePath,
		BranchName:        s.BranchName,
		Status:            string(s.Status),
		UpstreamSessionID: s.UpstreamSessionID,
		PermissionMode:    string(s.PermissionMode),
		Model:             s.Model,
		IsArchived:        s.IsArchived,
		IsFavorite:        s.IsFavorite,
		LastError:         s.LastError,
		LastViewedAt:      s.LastViewedAt,
		RunStartedAt:      s.RunStartedAt,
	}
}

// recordModelToDomain converts an OutputRecordModel to domain.OutputRecord
func recordModelToDomain(m OutputRecordModel) domain.OutputRecord {
	return domain.OutputRecord{
		SessionID: m.SessionID,
		Seq:       m.Seq,
		Kind:      domain.OutputKind(m.Kind),
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
	}
}

// domainToRecordModel converts a domain.OutputRecord to OutputRecordModel
func domainToRecordModel(r domain.OutputRecord) OutputRecordModel {
	return OutputRecordModel{
		SessionID: r.SessionID,
		Seq:       r.Seq,
		Kind:      string(r.Kind),
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
	}
}

// diffModelToDomain converts an ExecutionDiffModel to domain.ExecutionDiff
func diffModelToDomain(m ExecutionDiffModel) domain.ExecutionDiff {
	var files []string
	if m.FilesChanged != "" {
		files = strings.Split(m.FilesChanged, "\n")
	}
	return domain.ExecutionDiff{
		SessionID:     m.SessionID,
		Seq:           m.Seq,
		FilesChanged:  files,
		Summary:       m.Summary,
		CommitMessage: m.CommitMessage,
		CreatedAt:     m.CreatedAt,
	}
}

// domainToDiffModel converts a domain.ExecutionDiff to ExecutionDiffModel
func domainToDiffModel(d domain.ExecutionDiff) ExecutionDiffModel {
	return ExecutionDiffModel{
		SessionID:     d.SessionID,
		Seq:           d.Seq,
		FilesChanged:  strings.Join(d.FilesChanged, "\n"),
		Summary:       d.Summary,
		CommitMessage: d.CommitMessage,
		CreatedAt:     d.CreatedAt,
	}
}
