package models

// TariffSuggestRequest asks for a suggested per-seat price. DemandFactor and
// Occupancy default to 1 when omitted.
type TariffSuggestRequest struct {
	DistanceKm      float64  `json:"distance_km" binding:"min=0"`
	DurationMinutes float64  `json:"duration_minutes" binding:"min=0"`
	DemandFactor    *float64 `json:"demand_factor,omitempty"`
	Occupancy       *int     `json:"occupancy,omitempty"`
}

// TariffBreakdown itemizes the linear fare components.
type TariffBreakdown struct {
	BaseBoarding      float64 `json:"base_boarding"`
	DistanceComponent float64 `json:"distance_component"`
	DurationComponent float64 `json:"duration_component"`
}

// TariffRange is the accepted price band around the suggestion.
type TariffRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// TariffSuggestion is the computed price recommendation in whole pesos.
type TariffSuggestion struct {
	SuggestedTariff float64         `json:"suggested_tariff"`
	Breakdown       TariffBreakdown `json:"breakdown"`
	Range           TariffRange     `json:"range"`
	Currency        string          `json:"currency"`
}
