package procurement

import (
	"context"
	"strings"
)

// SupplierInput describes a new supplier.
type SupplierInput struct {
	Name    string `json:"nama" validate:"required"`
	Address string `json:"alamat"`
	Phone   string `json:"telepon"`
	Email   string `json:"email" validate:"omitempty,email"`
	Contact string `json:"kontak"`
}

// CreateSupplier registers a supplier.
func (s *Service) CreateSupplier(ctx context.Context, input SupplierInput) (Supplier, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Supplier{}, validationError("nama is required")
	}
	return s.suppliers.Create(ctx, Supplier{
		Name:    strings.TrimSpace(input.Name),
		Address: input.Address,
		Phone:   input.Phone,
		Email:   input.Email,
		Contact: input.Contact,
	})
}

// ListSuppliers returns every supplier.
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.suppliers.List(ctx)
}

// GetSupplier returns one supplier.
func (s *Service) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	return s.suppliers.Get(ctx, id)
}
