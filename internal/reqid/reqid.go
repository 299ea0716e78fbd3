// Package reqid tags compile requests with an identifier that ties their
// events and log lines together.
package reqid

import (
	"context"
	"math/rand/v2"
	"strconv"
)

// Header is the HTTP header a client may use to supply its own request ID.
const Header = "X-Request-Id"

type key struct{}

// NewContext returns a copy of parent carrying a new random request ID.
func NewContext(parent context.Context) (context.Context, int64) {
	return WithID(parent, rand.Int64())
}

// FromHeader reuses a positive decimal ID supplied by the client and
// generates one otherwise.
func FromHeader(parent context.Context, value string) (context.Context, int64) {
	if id, err := strconv.ParseInt(value, 10, 64); err == nil && id > 0 {
		return WithID(parent, id)
	}
	return NewContext(parent)
}

// WithID returns a copy of parent carrying id.
func WithID(parent context.Context, id int64) (context.Context, int64) {
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}
