package domain

import "fmt"

// TurnRole identifies the author of a conversation turn
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// ConversationTurn is one prior exchange supplied by the caller with a
// query. The service never persists history; its lifetime belongs to the
// caller.
type ConversationTurn struct {
	Role    TurnRole
	Content string
}

// ValidateTurn validates a ConversationTurn instance
func ValidateTurn(t *ConversationTurn) error {
	if t == nil {
		return fmt.Errorf("turn cannot be nil")
	}

	if !isValidTurnRole(t.Role) {
		return fmt.Errorf("turn Role is invalid: %s", t.Role)
	}

	if t.Content == "" {
		return fmt.Errorf("turn Content is required")
	}

	return nil
}

// isValidTurnRole checks if a TurnRole is valid
func isValidTurnRole(r TurnRole) bool {
	switch r {
	case TurnRoleUser, TurnRoleAssistant:
		return true
	}
	return false
}
