package agent

import (
	"fmt"

	"github.com/parleyhq/parley/internal/domain/board"
)

// Chat roles understood by completion providers.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// Turn is one chat message sent to the completion provider.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildContext converts board history into chat turns for the given identity.
// Each message becomes one turn headered "[from] (type): subject". Turns
// authored by this exact (role, instance) are assistant turns; every other
// sender is a user turn. The window bounds retained turns from the tail; if
// the oldest retained turn would be assistant, a synthetic user turn is
// prepended, since chat APIs require the conversation to open with a user
// turn.
func BuildContext(msgs []board.Message, id Identity, window int) []Turn {
	self := id.Role()

	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		role := ChatRoleUser
		if m.FromRole == self {
			role = ChatRoleAssistant
		}
		turns = append(turns, Turn{
			Role:    role,
			Content: fmt.Sprintf("[%s] (%s): %s\n%s", m.FromRole, m.Type, m.Subject, m.Body),
		})
	}

	if window > 0 && len(turns) > window {
		turns = turns[len(turns)-window:]
	}

	if len(turns) > 0 && turns[0].Role == ChatRoleAssistant {
		turns = append([]Turn{{Role: ChatRoleUser, Content: "(conversation resumes)"}}, turns...)
	}

	return turns
}

// EstimateTokens is a rough turn-content token estimate (4 chars per token)
// used only for the registry's context_tokens gauge.
func EstimateTokens(turns []Turn) int {
	n := 0
	for _, t := range turns {
		n += len(t.Content) / 4
	}
	return n
}
