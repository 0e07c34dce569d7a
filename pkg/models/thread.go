package models

// Thread returns prior with a user turn and an assistant turn appended.
// The input slice is never modified: the result is always a fresh copy, so
// a caller can safely reuse its history after the call (copy-on-write).
// No deduplication and no truncation happen here; history grows until the
// caller trims it.
func Thread(prior ConversationHistory, userText, assistantText string) ConversationHistory {
	updated := make(ConversationHistory, 0, len(prior)+2)
	updated = append(updated, prior...)
	updated = append(updated,
		ConversationTurn{Role: RoleUser, Content: userText},
		ConversationTurn{Role: RoleAssistant, Content: assistantText},
	)
	return updated
}
