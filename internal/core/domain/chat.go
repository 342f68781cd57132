package domain

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn in a conversation with the answer-generation
// collaborator.
type ChatMessage struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the message text.
	Content string
}

// Search sentinels. The search contract never returns an empty sequence:
// an empty or unreadable store yields exactly one of these values so the
// conversation layer always receives a well-formed context.
const (
	// NoResultsFound is returned when the store holds no relevant records.
	NoResultsFound = "No relevant emails found."

	// NoResultsError is returned when the search itself failed.
	NoResultsError = "No relevant emails found due to an error in the search process."
)

// ApologyReply is the user-facing fallback when answer generation fails.
// Raw errors never surface through the retrieval path.
const ApologyReply = "I apologize, but there was an error generating a response. Please try again."

// AssistantSystemPrompt frames the retrieved context for answer generation.
const AssistantSystemPrompt = "You are MailMind, an AI assistant with access to the user's email collection. " +
	"Below, you'll find the most relevant emails retrieved for the user's question. " +
	"Your job is to answer the question based on the provided emails. " +
	"If you cannot find the answer in the available emails, please politely inform the user. " +
	"Answer in a conversational, helpful manner as a personal email assistant."
