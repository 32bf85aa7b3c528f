package tariff

import (
	"fmt"
	"math"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/config"
	"github.com/sabanago/ride-sharing/pkg/models"
)

// Stable error codes raised by the tariff calculator.
const (
	CodeInvalidInput    = "TARIFF_INVALID_INPUT"
	CodePriceOutOfRange = "PRICE_OUT_OF_RANGE"
)

// Suggestions are quoted in whole Colombian pesos.
const currency = "COP"

// Service computes per-seat price recommendations from the linear fare
// model: (base + perKm·km + perMin·min) × demand / occupancy.
type Service struct {
	cfg config.TariffConfig
}

// NewService creates a tariff service with the configured coefficients.
func NewService(cfg config.TariffConfig) *Service {
	return &Service{cfg: cfg}
}

// Suggest computes the recommendation. DemandFactor and Occupancy default
// to 1 when omitted.
func (s *Service) Suggest(req *models.TariffSuggestRequest) (*models.TariffSuggestion, error) {
	demand := 1.0
	if req.DemandFactor != nil {
		demand = *req.DemandFactor
	}
	occupancy := 1
	if req.Occupancy != nil {
		occupancy = *req.Occupancy
	}

	if err := validateInputs(req.DistanceKm, req.DurationMinutes, demand, occupancy); err != nil {
		return nil, err
	}

	distanceComponent := s.cfg.PerKm * req.DistanceKm
	durationComponent := s.cfg.PerMinute * req.DurationMinutes

	raw := (s.cfg.BaseBoarding + distanceComponent + durationComponent) * demand / math.Max(1, float64(occupancy))
	suggested := math.Round(raw)

	band := s.cfg.RangePercent / 100
	return &models.TariffSuggestion{
		SuggestedTariff: suggested,
		Breakdown: models.TariffBreakdown{
			BaseBoarding:      s.cfg.BaseBoarding,
			DistanceComponent: math.Round(distanceComponent),
			DurationComponent: math.Round(durationComponent),
		},
		Range: models.TariffRange{
			Min: math.Round(suggested * (1 - band)),
			Max: math.Round(suggested * (1 + band)),
		},
		Currency: currency,
	}, nil
}

// ValidatePrice enforces that a posted per-seat price stays inside the
// suggested band for the trip's distance and duration. Trip creation calls
// this when both figures are present.
func (s *Service) ValidatePrice(price, distanceKm float64, durationMinutes int) error {
	suggestion, err := s.Suggest(&models.TariffSuggestRequest{
		DistanceKm:      distanceKm,
		DurationMinutes: float64(durationMinutes),
	})
	if err != nil {
		return err
	}
	if price < suggestion.Range.Min || price > suggestion.Range.Max {
		return common.NewBadRequestError(
			fmt.Sprintf("price_per_seat must be between %.0f and %.0f COP", suggestion.Range.Min, suggestion.Range.Max),
			nil,
		).WithCode(CodePriceOutOfRange)
	}
	return nil
}

func validateInputs(km, minutes, demand float64, occupancy int) error {
	switch {
	case math.IsNaN(km) || math.IsInf(km, 0) || km < 0:
		return invalidInput("distance_km must be >= 0")
	case math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0:
		return invalidInput("duration_minutes must be >= 0")
	case math.IsNaN(demand) || math.IsInf(demand, 0) || demand < 1:
		return invalidInput("demand_factor must be >= 1")
	case occupancy < 1:
		return invalidInput("occupancy must be >= 1")
	}
	return nil
}

func invalidInput(msg string) *common.AppError {
	return common.NewBadRequestError(msg, nil).WithCode(CodeInvalidInput)
}
