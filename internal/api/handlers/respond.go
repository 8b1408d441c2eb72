package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/intheknowyyc/server/internal/api/problem"
	"github.com/intheknowyyc/server/internal/domain/events"
	"github.com/intheknowyyc/server/internal/domain/sessions"
	"github.com/intheknowyyc/server/internal/domain/users"
)

// errBodyTooLarge marks a request body cut off by middleware.RequestSize.
var errBodyTooLarge = errors.New("request body too large")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads exactly one JSON value from the body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON value")
	}
	return nil
}

// writeDecodeError answers a failed decodeJSON.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	if errors.Is(err, errBodyTooLarge) {
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Payload too large", err, env,
			problem.WithDetail("Request body is too large."))
		return
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env)
}

// writeError maps domain errors onto problem responses. Anything it does
// not recognize is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var (
		filterErr    events.FilterError
		eventInvalid events.ValidationError
		userInvalid  users.ValidationError
	)

	switch {
	case errors.As(err, &filterErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithDetail(filterErr.Error()),
			problem.WithErrors(map[string]any{filterErr.Field: filterErr.Message}))
	case errors.As(err, &eventInvalid):
		opts := []problem.Option{problem.WithDetail(eventInvalid.Error())}
		if len(eventInvalid.Fields) > 0 {
			opts = append(opts, problem.WithErrors(fieldErrors(eventInvalid.Fields)))
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env, opts...)
	case errors.As(err, &userInvalid):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithDetail("Invalid user input."),
			problem.WithErrors(fieldErrors(userInvalid.Fields)))
	case errors.Is(err, sessions.ErrAuthenticationFailed),
		errors.Is(err, sessions.ErrInvalidToken),
		errors.Is(err, sessions.ErrTokenExpired):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, env,
			problem.WithDetail(err.Error()))
	case errors.Is(err, events.ErrForbidden), errors.Is(err, users.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", err, env,
			problem.WithDetail("You are not authorized to perform this action."))
	case errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env,
			problem.WithDetail("Event not found."))
	case errors.Is(err, users.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env,
			problem.WithDetail("User not found."))
	case errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, env,
			problem.WithDetail("User with this email already exists."))
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}

func fieldErrors(fields map[string]string) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
