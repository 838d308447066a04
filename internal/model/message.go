package model

type MessageRole string

const (
	MessageRoleUser      = MessageRole("user")
	MessageRoleAssistant = MessageRole("assistant")
	MessageRoleSystem    = MessageRole("system")
)

func (r MessageRole) Valid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	default:
		return false
	}
}

type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}
