// Package channel defines the outbound messaging capability the core depends
// on. The concrete transport lives in infra; the core only sees opaque
// delivery handles and prompt identifiers.
package channel

// Client sends messages to a subject's channel address. Any error return is
// treated as an opaque send failure and feeds the retry/backoff path.
type Client interface {
	// SendText delivers plain text and returns the transport's delivery handle.
	SendText(chatID, text string) (string, error)

	// SendPrompt delivers a message offering a small fixed set of selectable
	// answers and returns the transport-assigned prompt identifier, later used
	// to attribute inbound selection events.
	SendPrompt(chatID, question string, options []string) (string, error)
}
