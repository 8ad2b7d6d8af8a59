package service

import (
	"context"

	"github.com/andresuchdata/stockpilot/internal/cache"
	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/rs/zerolog/log"
)

// PurchaseOrder drafts the order of one supplier and stores it when a repository is configured.
func (s *InventoryService) PurchaseOrder(ctx context.Context, supplier string) (domain.PurchaseOrder, error) {
	po, err := s.planner.GeneratePurchaseOrder(supplier)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if err := s.savePurchaseOrder(ctx, po); err != nil {
		return domain.PurchaseOrder{}, err
	}
	return po, nil
}

// PurchaseOrders drafts one order per supplier, most urgent first. Orders are stored
// when drafted; a cached report is served as is and never written again.
func (s *InventoryService) PurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	return cached(ctx, s.reports, cache.ReportPurchaseOrders, nil, func() ([]domain.PurchaseOrder, error) {
		orders, err := s.planner.GeneratePurchaseOrders()
		if err != nil {
			return nil, err
		}
		for _, po := range orders {
			if err := s.savePurchaseOrder(ctx, po); err != nil {
				return nil, err
			}
		}
		return orders, nil
	})
}

// AdvancePurchaseOrder moves a stored order to its next status.
func (s *InventoryService) AdvancePurchaseOrder(ctx context.Context, number string) (domain.PurchaseOrder, error) {
	const op = "advance purchase order"

	if s.repo == nil {
		return domain.PurchaseOrder{}, domain.NewConfigurationError(op, "no repository configured")
	}
	orders, err := s.repo.ListPurchaseOrders(ctx, "")
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	for _, po := range orders {
		if po.Number != number {
			continue
		}
		if err := po.Advance(); err != nil {
			return domain.PurchaseOrder{}, err
		}
		if err := s.repo.UpdatePurchaseOrderStatus(ctx, po.Number, po.Status); err != nil {
			return domain.PurchaseOrder{}, err
		}
		log.Info().Str("number", po.Number).Str("status", string(po.Status)).Msg("purchase order advanced")
		return po, nil
	}
	return domain.PurchaseOrder{}, domain.NewValidationError(op, "unknown purchase order %q", number)
}

func (s *InventoryService) savePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SavePurchaseOrder(ctx, po); err != nil {
		return err
	}
	log.Debug().Str("number", po.Number).Str("supplier", po.Supplier).Int("lines", len(po.Lines)).Msg("purchase order saved")
	return nil
}
