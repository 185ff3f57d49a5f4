package ports

import "context"

// TokenSource provides bearer tokens for the collector.
type TokenSource interface {
	// Token returns the current token.
	Token(ctx context.Context) (string, error)

	// Refresh is called after the collector rejected the current token.
	Refresh(ctx context.Context) error
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Refresh is a no-op; a static token cannot be renewed.
func (StaticToken) Refresh(context.Context) error { return nil }
