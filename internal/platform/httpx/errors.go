package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

// DataCarrier is implemented by errors that expose details for the response body.
type DataCarrier interface {
	ErrorData() any
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrMalformedBody), errors.Is(err, store.ErrInvalidPatch):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrIllegalTransition), errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &verrs),
		errors.Is(err, shared.ErrValidation),
		errors.Is(err, workflow.ErrPrecondition),
		errors.Is(err, shared.ErrUnprocessable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as a failed envelope and logs server-side failures.
func RespondError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := StatusFor(err)
	if logger != nil {
		if status >= http.StatusInternalServerError {
			logger.Error(op, slog.Any("error", err))
		} else {
			logger.Warn(op, slog.Any("error", err), slog.Int("status", status))
		}
	}
	var data any
	var carrier DataCarrier
	if errors.As(err, &carrier) {
		data = carrier.ErrorData()
	}
	message := shared.UserSafeMessage(err)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		message = "Data tidak valid"
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		data = fields
	}
	Fail(w, status, message, err, data)
}
