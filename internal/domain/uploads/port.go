package uploads

import "context"

// Sink stores accepted upload bytes and returns a URL for them.
type Sink interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
