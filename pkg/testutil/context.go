package testutil

import (
	"net/http"

	"scholar/pkg/requestcontext"
)

// WithClient attaches the client address and user agent the metadata
// middleware would have extracted.
func WithClient(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}
