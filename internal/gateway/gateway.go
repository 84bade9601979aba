package gateway

// Messenger defines the interface for presentation surfaces (console,
// Telegram, Discord).
type Messenger interface {
	// Start begins the message loop and blocks until it ends.
	Start() error
	// Send sends a message to a specific chat.
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway.
	Stop() error
}
