package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"ecom-admin-proxy/internal/model"
)

const (
	contentTypeURLEncoded = "application/x-www-form-urlencoded"
	contentTypeMultipart  = "multipart/form-data"
	contentTypeJSON       = "application/json"
)

// errNoBoundary is returned for a multipart content type without a boundary parameter.
var errNoBoundary = errors.New("multipart content type has no boundary")

// formField is one name/value pair of a form, kept in arrival order.
type formField struct {
	name  string
	value string
}

// formFields is an ordered field set. url.Values sorts keys on Encode, which
// would reorder the body the browser sent.
type formFields []formField

// Encode renders the fields as an application/x-www-form-urlencoded body.
func (f formFields) Encode() string {
	var sb strings.Builder
	for i, field := range f {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(field.name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(field.value))
	}
	return sb.String()
}

// hasBody reports whether the outbound method carries a request body.
func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// EncodeBody re-serializes an inbound body into exactly one outbound encoding.
//
// Bodyless methods are skipped without reading body. With convert set the body
// is parsed as a form and re-encoded as URL-encoded; multipart bodies are
// otherwise passed through byte-for-byte with their original content type;
// URL-encoded bodies are re-serialized; anything else is sent as compact JSON
// when it parses, or as opaque text without a content type when it does not.
//
// A read that fails partway, or at the size limit, returns *BodyReadError.
// Only a body that yields no byte at all for another reason is treated as absent.
func EncodeBody(method, contentType string, body io.Reader, convert bool) (*model.EncodedBody, error) {
	if !hasBody(method) || body == nil {
		return &model.EncodedBody{Kind: model.BodyNone}, nil
	}

	mediaType, params, _ := mime.ParseMediaType(contentType)
	mediaType = strings.ToLower(mediaType)

	rt := &readTracker{r: body}

	switch {
	case convert:
		fields, err := readForm(mediaType, params, rt)
		if err != nil {
			return nil, rt.wrap(err)
		}
		return urlEncoded(fields), nil

	case mediaType == contentTypeMultipart:
		raw, err := io.ReadAll(rt)
		if err != nil {
			return nil, rt.wrap(err)
		}
		return &model.EncodedBody{
			Kind:        model.BodyMultipart,
			ContentType: contentType,
			Payload:     raw,
		}, nil

	case mediaType == contentTypeURLEncoded:
		fields, err := readForm(mediaType, params, rt)
		if err != nil {
			return nil, rt.wrap(err)
		}
		return urlEncoded(fields), nil

	default:
		return encodeJSONOrText(rt)
	}
}

// readTracker remembers how much was read and the first read failure, so a
// broken stream is told apart from a body that does not parse.
type readTracker struct {
	r   io.Reader
	n   int64
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.n += int64(n)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// wrap classifies a failed encode: read failures win over parse failures.
func (t *readTracker) wrap(err error) error {
	if t.err != nil {
		return &BodyReadError{Err: t.err}
	}
	return &EncodingError{Err: err}
}

// unavailable reports a body that produced nothing before failing, which is
// sent as an absent payload. Truncation and the size limit are never that.
func (t *readTracker) unavailable() bool {
	if t.err == nil || t.n > 0 {
		return false
	}
	var mbe *http.MaxBytesError
	return !errors.As(t.err, &mbe) && !errors.Is(t.err, io.ErrUnexpectedEOF)
}

func urlEncoded(fields formFields) *model.EncodedBody {
	return &model.EncodedBody{
		Kind:        model.BodyURLEncoded,
		ContentType: contentTypeURLEncoded,
		Payload:     []byte(fields.Encode()),
	}
}

func encodeJSONOrText(rt *readTracker) (*model.EncodedBody, error) {
	raw, err := io.ReadAll(rt)
	if err != nil {
		if rt.unavailable() {
			return &model.EncodedBody{Kind: model.BodyNone}, nil
		}
		return nil, &BodyReadError{Err: err}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil && buf.Len() > 0 {
		return &model.EncodedBody{
			Kind:        model.BodyJSON,
			ContentType: contentTypeJSON,
			Payload:     buf.Bytes(),
		}, nil
	}

	if raw == nil {
		raw = []byte{}
	}
	return &model.EncodedBody{Kind: model.BodyText, Payload: raw}, nil
}

// readForm parses a multipart or URL-encoded body into its ordered fields.
// File parts contribute their content as the field value.
func readForm(mediaType string, params map[string]string, body io.Reader) (formFields, error) {
	switch mediaType {
	case contentTypeMultipart:
		boundary := params["boundary"]
		if boundary == "" {
			return nil, errNoBoundary
		}
		return readMultipart(multipart.NewReader(body, boundary))

	case contentTypeURLEncoded:
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		return parseURLEncoded(string(raw))

	default:
		return nil, fmt.Errorf("content type %q is not a form", mediaType)
	}
}

func readMultipart(mr *multipart.Reader) (formFields, error) {
	var fields formFields
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return fields, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart: %w", err)
		}

		name := part.FormName()
		value, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, fmt.Errorf("read multipart field %q: %w", name, err)
		}
		if name == "" {
			continue
		}
		fields = append(fields, formField{name: name, value: string(value)})
	}
}

// parseURLEncoded mirrors url.ParseQuery but keeps the original field order.
func parseURLEncoded(raw string) (formFields, error) {
	var fields formFields
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("invalid form key %q: %w", key, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("invalid form value for %q: %w", k, err)
		}
		fields = append(fields, formField{name: k, value: v})
	}
	return fields, nil
}
