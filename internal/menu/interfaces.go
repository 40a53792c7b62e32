package menu

import (
	"context"
	"time"
)

// Source fetches the raw menu payload for one location and one date.
type Source interface {
	FetchMenu(ctx context.Context, location string, date string) (Payload, []byte, error)
}

// Tagger assigns descriptive tags to a dish name.
type Tagger interface {
	Tags(name string) []string
}

// PageFetcher returns the HTML body of a page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// Archive stores raw payload snapshots and returns a URI.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run reports to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for archive naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run ids.
type IDGenerator interface {
	NewID() (string, error)
}
