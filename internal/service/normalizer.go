package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"ecom-admin-proxy/internal/model"
)

const (
	msgInvalidFormat = "Invalid response format from server"
	msgRequestFailed = "Request failed"
	previewBytes     = 500
)

// backendMessage holds the fields the backend uses to describe a failure.
type backendMessage struct {
	Message       any `json:"message"`
	ErrorMessages *struct {
		Errors any `json:"Errors"`
	} `json:"errorMessages"`
}

// Normalizer maps backend responses onto UnifiedResult.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger.With("component", "normalizer")}
}

// Normalize never fails: every backend reply, however malformed, becomes a result.
func (n *Normalizer) Normalize(path string, resp *model.BackendResponse) model.UnifiedResult {
	if resp == nil {
		return model.Failure(http.StatusInternalServerError, model.ServerError, msgInvalidFormat)
	}

	if !strings.Contains(strings.ToLower(resp.ContentType), "application/json") {
		n.logger.Error("non-JSON response from backend",
			"path", path,
			"status", resp.StatusCode,
			"content_type", resp.ContentType,
			"detected", mimetype.Detect(resp.Body).String(),
			"preview", preview(resp.Body),
		)
		return model.Failure(nonJSONStatus(resp.StatusCode), model.ServerError,
			fmt.Sprintf("Server returned invalid response (status: %d)", resp.StatusCode))
	}

	if !json.Valid(resp.Body) {
		n.logger.Error("failed to parse JSON response from backend",
			"path", path,
			"status", resp.StatusCode,
			"preview", preview(resp.Body),
		)
		return model.Failure(http.StatusInternalServerError, model.ServerError, msgInvalidFormat)
	}

	if isSuccess(resp.StatusCode) {
		return model.Success(resp.StatusCode, json.RawMessage(resp.Body))
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return model.Failure(status, model.NetworkError, failureMessage(resp.Body))
}

// nonJSONStatus keeps an error status but never reports success for an unusable body.
func nonJSONStatus(status int) int {
	if status == 0 || isSuccess(status) {
		return http.StatusInternalServerError
	}
	return status
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

// failureMessage prefers "message", then "errorMessages.Errors", then a generic text.
func failureMessage(body []byte) string {
	var msg backendMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// Valid JSON that is not an object (array, string, number).
		return msgRequestFailed
	}
	if s := messageText(msg.Message); s != "" {
		return s
	}
	if msg.ErrorMessages != nil {
		if s := messageText(msg.ErrorMessages.Errors); s != "" {
			return s
		}
	}
	return msgRequestFailed
}

// messageText renders a message field. Strings pass through; other
// non-empty values are rendered as compact JSON.
func messageText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func preview(body []byte) string {
	if len(body) > previewBytes {
		body = body[:previewBytes]
	}
	return string(body)
}
