// Package models defines the shared data types of the chatbot relay:
// conversation turns, the canonical relay event union, decoded access
// claims and the model listing returned to the widget.
package models

// Conversation roles. The relay only ever appends these two; it does not
// enforce alternation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is a single message in a conversation. Turns are
// immutable once appended and their order is significant.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationHistory is the ordered sequence of turns exchanged in a
// session. The caller owns it between requests; the relay is stateless and
// receives and returns the full history on every call.
type ConversationHistory []ConversationTurn

// Event types of the relay's outbound protocol. A request's event sequence
// is zero or more chunks followed by exactly one end or error.
const (
	EventChunk = "chunk"
	EventEnd   = "end"
	EventError = "error"
)

// RelayEvent is one record of the canonical event stream. Type selects
// which of the remaining fields is meaningful.
type RelayEvent struct {
	Type         string              `json:"type"`
	Content      string              `json:"content,omitempty"`
	Conversation ConversationHistory `json:"conversation,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// ChunkEvent returns an incremental content fragment. Fragments are
// concatenated in arrival order by the consumer.
func ChunkEvent(content string) RelayEvent {
	return RelayEvent{Type: EventChunk, Content: content}
}

// EndEvent returns the terminal success event carrying the authoritative
// post-turn history.
func EndEvent(conversation ConversationHistory) RelayEvent {
	return RelayEvent{Type: EventEnd, Conversation: conversation}
}

// ErrorEvent returns the terminal failure event. No further events follow.
func ErrorEvent(message string) RelayEvent {
	return RelayEvent{Type: EventError, Error: message}
}

// AccessClaim is the decoded payload of a widget bearer credential. It is
// parsed fresh on every request and never cached server-side.
//
// Exp is carried but deliberately not enforced by the credential gate: a
// structurally valid token with a valid signature is accepted no matter how
// long ago it expired. This is documented policy, not an oversight.
type AccessClaim struct {
	HeaderColor     string   `json:"headerColor,omitempty"`
	BotBubbleColor  string   `json:"botBubbleColor,omitempty"`
	UserBubbleColor string   `json:"userBubbleColor,omitempty"`
	ChatPosition    string   `json:"chatPosition,omitempty"`
	Model           string   `json:"model,omitempty"`
	AllowedDomains  []string `json:"allowedDomains,omitempty"`
	Exp             int64    `json:"exp,omitempty"`
}

// LanguageModel identifies one model offered by the configured backend.
type LanguageModel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message      string              `json:"message"`
	Conversation ConversationHistory `json:"conversation,omitempty"`
	Model        string              `json:"model,omitempty"`
}
