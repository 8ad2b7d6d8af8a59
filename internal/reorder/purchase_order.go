package reorder

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/shopspring/decimal"
)

// UnknownSupplier groups recommendations of articles without a supplier.
const UnknownSupplier = "unknown supplier"

// GeneratePurchaseOrder drafts the order of one supplier. It is the order
// GeneratePurchaseOrders would draft for that supplier at the same instant.
func (p *Planner) GeneratePurchaseOrder(supplier string) (domain.PurchaseOrder, error) {
	const op = "generate purchase order"

	orders, err := p.GeneratePurchaseOrders()
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	want := supplierKey(supplier)
	for _, po := range orders {
		if supplierKey(po.Supplier) == want {
			return po, nil
		}
	}
	return domain.PurchaseOrder{}, domain.NewValidationError(op, "nothing to order from %q", supplierLabel(supplier))
}

// GeneratePurchaseOrders builds one draft order per supplier, most urgent first.
func (p *Planner) GeneratePurchaseOrders() ([]domain.PurchaseOrder, error) {
	recs, err := p.Recommend(p.preventiveInOrders, "")
	if err != nil {
		return nil, err
	}
	return BuildPurchaseOrders(recs, p.sales.Now()), nil
}

// BuildPurchaseOrders groups recs by supplier. Orders are sorted by highest
// urgency, then supplier. Lines keep the order of recs.
func BuildPurchaseOrders(recs []domain.Recommendation, now time.Time) []domain.PurchaseOrder {
	bySupplier := make(map[string]*domain.PurchaseOrder)
	var keys []string

	for _, r := range recs {
		key := supplierKey(r.Supplier)
		po, ok := bySupplier[key]
		if !ok {
			po = &domain.PurchaseOrder{
				Supplier:   supplierLabel(r.Supplier),
				CreatedAt:  now,
				TotalCost:  decimal.Zero,
				MaxUrgency: r.Urgency,
				Status:     domain.OrderStatusDraft,
			}
			bySupplier[key] = po
			keys = append(keys, key)
		}

		unit := decimal.NewFromFloat(r.UnitCost)
		total := unit.Mul(decimal.NewFromInt(int64(r.Quantity)))
		po.Lines = append(po.Lines, domain.PurchaseOrderLine{
			ArticleID:        r.ArticleID,
			ArticleName:      r.ArticleName,
			ArticleReference: r.ArticleReference,
			Quantity:         r.Quantity,
			UnitCost:         unit,
			Total:            total,
			Urgency:          r.Urgency,
		})
		po.TotalQuantity += r.Quantity
		po.TotalCost = po.TotalCost.Add(total)
		if r.Urgency.MoreUrgent(po.MaxUrgency) {
			po.MaxUrgency = r.Urgency
		}
	}

	out := make([]domain.PurchaseOrder, 0, len(keys))
	for _, k := range keys {
		out = append(out, *bySupplier[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MaxUrgency.Rank() != out[j].MaxUrgency.Rank() {
			return out[i].MaxUrgency.Rank() < out[j].MaxUrgency.Rank()
		}
		return out[i].Supplier < out[j].Supplier
	})
	for i := range out {
		out[i].Number = orderNumber(now, i+1, out[i].Supplier)
	}
	return out
}

// orderNumber is PO-<date>-<time>-<rank>-<supplier code>. The code keeps orders
// of different suppliers apart even when drafted in the same second.
func orderNumber(now time.Time, rank int, supplier string) string {
	sum := sha1.Sum([]byte(supplierKey(supplier)))
	return fmt.Sprintf("PO-%s-%02d-%s", now.Format("20060102-150405"), rank, strings.ToUpper(hex.EncodeToString(sum[:3])))
}

func supplierKey(s string) string {
	return strings.ToLower(supplierLabel(s))
}

func supplierLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnknownSupplier
	}
	return s
}
