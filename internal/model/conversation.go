package model

import "errors"

var (
	ErrConversationDoesNotExist = errors.New("conversation does not exist")
)

type MessageSource string

const (
	MessageSourceSystem    = MessageSource("system")
	MessageSourceUser      = MessageSource("user")
	MessageSourceAssistant = MessageSource("assistant")
)

type Message struct {
	Source MessageSource
	Body   string
}

// Conversation is the full persisted history for one sender. Number is the
// phone number with the leading "+" stripped.
type Conversation struct {
	Number   string
	Messages []Message
}
