package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrTaskRunning is returned when the backend answers 409: another task is already running.
	ErrTaskRunning = errors.New("another task is already running")

	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx response. Detail carries the backend's message verbatim.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Status == http.StatusConflict {
		if e.Detail != "" {
			return fmt.Sprintf("%s: %s", ErrTaskRunning, e.Detail)
		}
		return ErrTaskRunning.Error()
	}
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Is lets errors.Is match the sentinel for well-known statuses.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTaskRunning:
		return e.Status == http.StatusConflict
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// TransportError wraps a network failure that survived the retry policy.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a network-level failure rather than a backend answer.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

type validationDetail struct {
	Msg string `json:"msg"`
	Loc []any  `json:"loc"`
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		apiErr.Detail = strings.TrimSpace(string(data))
		return apiErr
	}

	apiErr.Detail = detailMessage(body.Detail)
	if apiErr.Detail == "" {
		apiErr.Detail = body.Message
	}
	return apiErr
}

// detailMessage accepts both a plain string and a list of validation entries.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []validationDetail
	if err := json.Unmarshal(raw, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, d := range list {
			if len(d.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", d.Loc[len(d.Loc)-1], d.Msg))
			} else {
				msgs = append(msgs, d.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return strings.TrimSpace(string(raw))
}
