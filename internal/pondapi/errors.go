package pondapi

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call to the pond server.
type Kind int

const (
	// KindTransport is a network failure or a cancelled request.
	KindTransport Kind = iota + 1
	// KindStatus is a non-2xx HTTP response.
	KindStatus
	// KindDecode is a body that is not the expected JSON.
	KindDecode
	// KindBusiness is a well-formed response with success != true.
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindBusiness:
		return "business"
	}
	return "unknown"
}

// snippetLimit bounds how much of a non-JSON body is echoed back to the operator.
const snippetLimit = 120

// Error is returned by every Client method on failure.
type Error struct {
	Kind     Kind
	Endpoint string // endpoint label, e.g. "alerts.notify"
	Status   int    // HTTP status, zero for transport failures
	Message  string // server-supplied message, if any
	Snippet  string // head of a non-JSON body
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("%s: request failed: %v", e.Endpoint, e.Err)
	case KindDecode:
		return fmt.Sprintf("%s: %s", e.Endpoint, decodeText(e.Status, e.Snippet))
	case KindStatus:
		if e.Message != "" {
			return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.Status, e.Message)
		}
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.Status)
	case KindBusiness:
		if e.Message != "" {
			return fmt.Sprintf("%s: rejected: %s", e.Endpoint, e.Message)
		}
		return fmt.Sprintf("%s: rejected", e.Endpoint)
	}
	return e.Endpoint + ": failed"
}

func (e *Error) Unwrap() error {
	return e.Err
}

func decodeText(status int, snippet string) string {
	if snippet == "" {
		snippet = "（無內容）"
	}
	return fmt.Sprintf("伺服器回傳非 JSON（HTTP %d）：%s", status, snippet)
}

// IsKind reports whether err is a pond server error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// Message returns operator-facing text for err: the server-supplied message
// when present, the decode diagnostic for non-JSON bodies, else fallback.
func Message(err error, fallback string) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return fallback
	}
	switch {
	case apiErr.Message != "":
		return apiErr.Message
	case apiErr.Kind == KindDecode:
		return decodeText(apiErr.Status, apiErr.Snippet)
	}
	return fallback
}

func snippet(body []byte) string {
	r := []rune(string(body))
	if len(r) > snippetLimit {
		r = r[:snippetLimit]
	}
	return string(r)
}
