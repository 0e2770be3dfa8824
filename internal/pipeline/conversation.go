package pipeline

import (
	"maestro/internal/domain"
)

// BuildConversation reconstructs the user/agent message exchange from a
// session's durable record sequence. Used to seed a fresh agent process
// with the conversation so far when a stopped session is resumed.
func BuildConversation(records []domain.OutputRecord) []domain.ConversationMessage {
	var messages []domain.ConversationMessage

	for _, record := range records {
		if record.Kind != domain.KindStructuredEvent {
			continue
		}
		ev, err := domain.ParseAgentEvent(record.Payload)
		if err != nil {
			continue
		}

		switch ev.Type {
		case domain.EventUserPrompt:
			messages = append(messages, domain.ConversationMessage{
				SessionID: record.SessionID,
				Seq:       record.Seq,
				Role:      domain.RoleUser,
				Text:      ev.Text,
			})
		case domain.EventText:
			if ev.Text == "" {
				continue
			}
			messages = append(messages, domain.ConversationMessage{
				SessionID: record.SessionID,
				Seq:       record.Seq,
				Role:      domain.RoleAgent,
				Text:      ev.Text,
			})
		}
	}
	return messages
}
