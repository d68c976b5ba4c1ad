// Package model defines shared types for the proxy.
package model

import "io"

// ProxyRequest is one inbound call bound for the backend admin API.
// Path is relative to the backend admin prefix; RawQuery is forwarded as-is.
type ProxyRequest struct {
	Method      string
	Path        string
	RawQuery    string
	ContentType string
	Body        io.Reader
	AuthToken   string
}

// ProxyOptions adjusts how a route forwards its request.
type ProxyOptions struct {
	// Method overrides the outbound verb (the backend expects POST for deletes).
	Method string
	// ConvertToURLEncoded re-encodes a form body as application/x-www-form-urlencoded.
	ConvertToURLEncoded bool
}

// BodyKind identifies the encoding chosen for an outbound body.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyURLEncoded
	BodyMultipart
	BodyJSON
	BodyText
)

func (k BodyKind) String() string {
	switch k {
	case BodyURLEncoded:
		return "urlencoded"
	case BodyMultipart:
		return "multipart"
	case BodyJSON:
		return "json"
	case BodyText:
		return "text"
	default:
		return "none"
	}
}

// EncodedBody is the outbound body with the content type that matches it.
// An empty ContentType means no override; a nil Payload means no body.
type EncodedBody struct {
	Kind        BodyKind
	ContentType string
	Payload     []byte
}

// BackendResponse is the raw backend reply. Only the normalizer reads it.
type BackendResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}
