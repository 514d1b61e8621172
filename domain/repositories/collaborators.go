package repositories

// ContactDirectory exposes the externally-owned address book, read-only.
type ContactDirectory interface {
	Contacts() map[string]string
}

// Authenticator reports the caller's authentication state.
type Authenticator interface {
	IsAuthenticated() bool
	// UserID returns the authenticated user's id, or nil when anonymous.
	UserID() *int
	// Token returns the bearer token attached to gateway calls.
	Token() string
}

// Notifier is a sink for ephemeral error/status notifications.
type Notifier interface {
	Notify(title string, message string)
}
