package scenario

import "github.com/andresuchdata/stockpilot/internal/domain"

const BaselineName = "baseline"

// Baseline simulates the current situation without adjustments.
func Baseline() domain.ScenarioParameters {
	return domain.ScenarioParameters{Name: BaselineName, Description: "current situation, no adjustment"}
}

// Presets returns the baseline followed by the standard what-if scenarios.
func Presets() []domain.ScenarioParameters {
	return []domain.ScenarioParameters{
		Baseline(),
		{Name: "demand-up", Description: "sales up 20% (marketing campaign)", DemandGrowth: 0.2},
		{Name: "demand-down", Description: "sales down 20% (slow season)", DemandGrowth: -0.2},
		{Name: "price-up", Description: "sale prices up 10%", SalePriceDelta: 0.1},
		{Name: "costs-up", Description: "purchase costs up 15% (inflation)", PurchaseCostDelta: 0.15},
		{Name: "lead-time-up", Description: "supplier lead times 5 days longer", LeadTimeDelta: 5},
		{Name: "optimistic", Description: "sales up 15% and prices up 5%", DemandGrowth: 0.15, SalePriceDelta: 0.05},
		{Name: "pessimistic", Description: "sales down 15% and costs up 10%", DemandGrowth: -0.15, PurchaseCostDelta: 0.1},
	}
}

// Preset looks a preset up by name.
func Preset(name string) (domain.ScenarioParameters, bool) {
	for _, p := range Presets() {
		if p.Name == name {
			return p, true
		}
	}
	return domain.ScenarioParameters{}, false
}
