package web

// errors.go turns handler errors into responses.
//
// The technical error is logged with the request ID; the client receives the
// mapped user message and code as JSON, or as an HTML alert for HTMX callers.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/logging"
	"github.com/JonMunkholm/catalogimport/internal/store"
	"github.com/JonMunkholm/catalogimport/internal/web/views"
)

// ErrorResponse is the JSON body of an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errNoFile      = errors.New("no file provided")
	errInvalidForm = errors.New("invalid form")
)

// statusFor picks the HTTP status for errors raised before an import runs.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrImportBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, store.ErrUnknownCollection):
		return http.StatusNotFound
	case errors.Is(err, errNoFile), errors.Is(err, errInvalidForm):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := core.NewUserError(err)
	userMsg := ue.User

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", userMsg.Code,
		"user_facing", core.IsUserFacing(err),
	)

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "5")
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = views.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w)
		return
	}
	writeJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsHTML reports whether the caller asked for an HTML partial.
func wantsHTML(r *http.Request) bool {
	return isHTMX(r) || strings.Contains(r.Header.Get("Accept"), "text/html")
}
