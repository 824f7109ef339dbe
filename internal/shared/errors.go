package shared

import (
	"errors"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request carried invalid data.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the request clashes with existing data.
	ErrConflict = errors.New("conflict")
	// ErrUnprocessable indicates a business rule rejected the request.
	ErrUnprocessable = errors.New("unprocessable")
)

// UserSafeMessage returns a message suitable for API consumers.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrNotFound):
		return "Data tidak ditemukan"
	case errors.Is(err, workflow.ErrIllegalTransition):
		return "Status dokumen tidak mengizinkan aksi ini"
	case errors.Is(err, workflow.ErrPrecondition):
		return "Syarat transisi dokumen belum terpenuhi"
	case errors.Is(err, store.ErrInvalidPatch):
		return "Format perubahan data tidak valid"
	case errors.Is(err, ErrValidation):
		return "Data tidak valid"
	case errors.Is(err, ErrConflict):
		return "Data bentrok dengan data lain"
	case errors.Is(err, ErrUnprocessable):
		return "Permintaan ditolak oleh aturan bisnis"
	default:
		return "Terjadi kesalahan pada server"
	}
}
