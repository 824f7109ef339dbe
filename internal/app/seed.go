package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/inventory"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/procurement"
)

var sampleSuppliers = []procurement.SupplierInput{
	{Name: "PT. Supplier Maju", Address: "Jl. Industri No. 12, Bekasi", Phone: "021-8800123", Email: "sales@suppliermaju.co.id", Contact: "Budi Santoso"},
	{Name: "CV. Material Jaya", Address: "Jl. Raya Cikarang No. 5", Phone: "021-8900456", Email: "order@materialjaya.co.id", Contact: "Siti Rahayu"},
}

var sampleCards = []inventory.CreateCardInput{
	{ItemCode: "BRG001", Name: "Bahan Baku A", Spec: "Grade A", Unit: "Kg", Opening: decimal.NewFromInt(500), Location: "Rak A-1", MinStock: decimal.NewFromInt(100)},
	{ItemCode: "BRG002", Name: "Bahan Baku B", Spec: "Grade B", Unit: "Kg", Opening: decimal.NewFromInt(200), Location: "Rak B-2", MinStock: decimal.NewFromInt(100)},
}

// Seed loads the sample suppliers and stock cards once. A populated store is
// left untouched.
func Seed(ctx context.Context, svc *Services, logger *slog.Logger) error {
	suppliers, err := svc.Procurement.ListSuppliers(ctx)
	if err != nil {
		return fmt.Errorf("seed: list suppliers: %w", err)
	}
	if len(suppliers) == 0 {
		for _, input := range sampleSuppliers {
			if _, err := svc.Procurement.CreateSupplier(ctx, input); err != nil {
				return fmt.Errorf("seed: supplier %s: %w", input.Name, err)
			}
		}
	}
	for _, input := range sampleCards {
		_, err := svc.Inventory.CreateCard(ctx, input)
		switch {
		case errors.Is(err, inventory.ErrDuplicateCard):
		case err != nil:
			return fmt.Errorf("seed: card %s: %w", input.ItemCode, err)
		}
	}
	if logger != nil {
		logger.Info("sample data ready", slog.Int("suppliers", len(sampleSuppliers)), slog.Int("cards", len(sampleCards)))
	}
	return nil
}
