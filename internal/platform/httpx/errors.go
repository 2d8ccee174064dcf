package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/libreria-lumen/backoffice/internal/shared"
)

type kindStatus struct {
	kind   error
	status int
	title  string
}

var kindStatuses = []kindStatus{
	{shared.ErrNotFound, http.StatusNotFound, "Not Found"},
	{shared.ErrInvalidArgument, http.StatusBadRequest, "Invalid Argument"},
	{shared.ErrInvalidState, http.StatusConflict, "Invalid State"},
	{shared.ErrAlreadyClosed, http.StatusConflict, "Already Closed"},
	{shared.ErrAlreadyCompleted, http.StatusConflict, "Already Completed"},
	{shared.ErrInsufficientStock, http.StatusConflict, "Insufficient Stock"},
	{shared.ErrCashierRequired, http.StatusUnprocessableEntity, "Cashier Required"},
	{shared.ErrConflict, http.StatusConflict, "Conflict"},
	{shared.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{shared.ErrForbidden, http.StatusForbidden, "Forbidden"},
}

// IsInternal reports whether err carries no business kind and would be
// rendered as a 500.
func IsInternal(err error) bool {
	var be *shared.Error
	return !errors.As(err, &be)
}

// RespondError maps business errors to RFC7807 responses. Anything that is
// not a *shared.Error becomes an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	var be *shared.Error
	if errors.As(err, &be) {
		for _, ks := range kindStatuses {
			if errors.Is(be.Kind, ks.kind) {
				WriteProblem(w, ProblemDetail{
					Title:  ks.title,
					Status: ks.status,
					Code:   be.Code,
					Detail: be.Message,
				})
				return
			}
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// Fail logs internal errors with the request id and writes the response.
func Fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if IsInternal(err) && logger != nil {
		logger.Error("request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	RespondError(w, err)
}
