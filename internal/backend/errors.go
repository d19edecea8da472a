package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// GenericMessage is shown when neither the backend nor the transport said anything useful.
const GenericMessage = "Ocurrió un error inesperado. Inténtalo de nuevo."

// NotFoundMessage is shown for a 404 without a backend-provided message.
const NotFoundMessage = "El recurso solicitado no existe."

var ErrUnexpectedShape = errors.New("backend: unexpected response shape")

// Error is a non-2xx answer from the backend.
type Error struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func IsNotFound(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.StatusCode == http.StatusNotFound
}

// UserMessage picks the most specific text for an alert: the backend's own
// message, then the transport error, then GenericMessage.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var be *Error
	if errors.As(err, &be) {
		if be.Message != "" {
			return be.Message
		}
		if be.StatusCode == http.StatusNotFound {
			return NotFoundMessage
		}
		return GenericMessage
	}

	if errors.Is(err, ErrUnexpectedShape) {
		return GenericMessage
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return GenericMessage
}

var messagePaths = []string{"message", "error.message", "error", "data.message", "data.error"}

func extractMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	r := gjson.ParseBytes(body)
	for _, p := range messagePaths {
		v := r.Get(p)
		if v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}
