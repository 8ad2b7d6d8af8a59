package postgres

import (
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type purchaseOrderRow struct {
	Number        string             `db:"number"`
	Supplier      string             `db:"supplier"`
	CreatedAt     time.Time          `db:"created_at"`
	TotalQuantity int                `db:"total_quantity"`
	TotalCost     decimal.Decimal    `db:"total_cost"`
	MaxUrgency    domain.Urgency     `db:"max_urgency"`
	Status        domain.OrderStatus `db:"status"`
}

type purchaseOrderLineRow struct {
	OrderNumber      string          `db:"order_number"`
	LineNo           int             `db:"line_no"`
	ArticleID        string          `db:"article_id"`
	ArticleName      string          `db:"article_name"`
	ArticleReference string          `db:"article_reference"`
	Quantity         int             `db:"quantity"`
	UnitCost         decimal.Decimal `db:"unit_cost"`
	Total            decimal.Decimal `db:"total"`
	Urgency          domain.Urgency  `db:"urgency"`
}

// assembleOrders attaches lines to their order headers, keeping header order.
func assembleOrders(headers []purchaseOrderRow, lines []purchaseOrderLineRow) ([]domain.PurchaseOrder, error) {
	index := make(map[string]int, len(headers))
	out := make([]domain.PurchaseOrder, len(headers))
	for i, h := range headers {
		index[h.Number] = i
		out[i] = domain.PurchaseOrder{
			Number:        h.Number,
			Supplier:      h.Supplier,
			CreatedAt:     h.CreatedAt,
			TotalQuantity: h.TotalQuantity,
			TotalCost:     h.TotalCost,
			MaxUrgency:    h.MaxUrgency,
			Status:        h.Status,
			Lines:         []domain.PurchaseOrderLine{},
		}
	}

	for _, l := range lines {
		i, ok := index[l.OrderNumber]
		if !ok {
			return nil, errors.Errorf("line %d references unknown purchase order %s", l.LineNo, l.OrderNumber)
		}
		out[i].Lines = append(out[i].Lines, domain.PurchaseOrderLine{
			ArticleID:        l.ArticleID,
			ArticleName:      l.ArticleName,
			ArticleReference: l.ArticleReference,
			Quantity:         l.Quantity,
			UnitCost:         l.UnitCost,
			Total:            l.Total,
			Urgency:          l.Urgency,
		})
	}
	return out, nil
}
