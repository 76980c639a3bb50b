package app

import (
	"context"

	"github.com/gin-gonic/gin"
)

type originalURIKey struct{}

// WithOriginalURI remembers the URI the client actually requested before the
// ?route= dispatcher rewrote the path.
func WithOriginalURI(ctx context.Context, uri string) context.Context {
	return context.WithValue(ctx, originalURIKey{}, uri)
}

// OriginalURI returns the path and query as the client sent them.
func OriginalURI(c *gin.Context) string {
	if uri, ok := c.Request.Context().Value(originalURIKey{}).(string); ok && uri != "" {
		return uri
	}
	return c.Request.URL.RequestURI()
}
