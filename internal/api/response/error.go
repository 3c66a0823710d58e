package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error maps a domain error to the status and message a client sees.
type Error struct {
	Target  error
	Code    int
	Message string // empty uses the returned error's text
}

func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Target.Error()
}

func NewError(target error, code int, message string) Error {
	return Error{
		Target:  target,
		Code:    code,
		Message: message,
	}
}

// ErrorResponseFor writes the first mapping whose Target matches err.
// Unmatched errors become a 500 carrying fallback.
func ErrorResponseFor(c *gin.Context, err error, fallback string, mappings ...Error) {
	for _, m := range mappings {
		if errors.Is(err, m.Target) {
			message := m.Message
			if message == "" {
				message = err.Error()
			}
			ErrorResponse(c, m.Code, message)
			return
		}
	}
	ErrorResponse(c, http.StatusInternalServerError, fallback)
}
