package scenario

import "github.com/andresuchdata/stockpilot/internal/domain"

// Impact estimates what a prolonged stockout of one article costs.
type Impact struct {
	ArticleID   string          `json:"article_id"`
	ArticleName string          `json:"article_name"`
	Days        int             `json:"days"`
	LostUnits   int             `json:"lost_units"`
	LostRevenue float64         `json:"lost_revenue"`
	LostMargin  float64         `json:"lost_margin"`
	AnnualShare float64         `json:"annual_share"`
	Severity    domain.Severity `json:"severity"`
}

// StockoutImpact values days without stock at the article's current sales rate.
func (s *Simulator) StockoutImpact(articleID string, days int) (Impact, error) {
	if days < 1 {
		return Impact{}, domain.NewValidationError("stockout impact", "days must be at least 1, got %d", days)
	}
	a, err := s.source.GetArticle(articleID)
	if err != nil {
		return Impact{}, err
	}

	lost := a.AverageDailySales * float64(days)
	imp := Impact{
		ArticleID:   a.ID,
		ArticleName: a.Name,
		Days:        days,
		LostUnits:   int(lost),
		LostRevenue: lost * a.SalePrice,
		LostMargin:  lost * a.UnitMargin(),
	}
	if annual := a.AverageDailySales * 365 * a.SalePrice; annual > 0 {
		imp.AnnualShare = imp.LostRevenue / annual
	}
	imp.Severity = impactSeverity(imp.AnnualShare)
	return imp, nil
}

func impactSeverity(share float64) domain.Severity {
	switch {
	case share >= 0.20:
		return domain.SeverityCritical
	case share >= 0.10:
		return domain.SeverityHigh
	case share >= 0.05:
		return domain.SeverityMedium
	}
	return domain.SeverityLow
}
