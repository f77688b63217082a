package content

import (
	"context"
)

// Payload is what a provider returns for a locator.
type Payload struct {
	Body        []byte
	ContentType string
}

// Provider fetches raw bytes for a locator.
type Provider interface {
	ID() string
	Fetch(ctx context.Context, locator string) (*Payload, error)
}

// MetadataProvider fetches side-channel key-value metadata for a locator.
type MetadataProvider interface {
	ID() string
	FetchMetadata(ctx context.Context, locator string) (map[string]string, error)
}
