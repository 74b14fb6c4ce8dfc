package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate card for shipping cost:
//
//	cost = round((baseRate + totalWeight*weightRate) * serviceMultiplier
//	             + insuranceFee + fragileFee)
var (
	baseRate     = decimal.NewFromInt(50)
	weightRate   = decimal.NewFromInt(20) // per kg
	insuranceFee = decimal.NewFromInt(50)
	fragileFee   = decimal.NewFromInt(30)
)

const (
	ServiceStandard  = "standard"
	ServiceExpress   = "express"
	ServiceOvernight = "overnight"
)

func serviceMultiplier(serviceType string) decimal.Decimal {
	switch serviceType {
	case ServiceOvernight:
		return decimal.NewFromInt(2)
	case ServiceExpress:
		return decimal.NewFromFloat(1.5)
	default:
		return decimal.NewFromInt(1)
	}
}

// ShippingCost computes the booking cost for the given total weight and
// service options, rounded to the nearest whole currency unit.
func ShippingCost(totalWeightKg float64, serviceType string, insurance, fragile bool) float64 {
	cost := baseRate.
		Add(decimal.NewFromFloat(totalWeightKg).Mul(weightRate)).
		Mul(serviceMultiplier(serviceType))
	if insurance {
		cost = cost.Add(insuranceFee)
	}
	if fragile {
		cost = cost.Add(fragileFee)
	}
	f, _ := cost.Round(0).Float64()
	return f
}

// DeliveryDays returns the promised delivery window for a service type.
func DeliveryDays(serviceType string) int {
	switch serviceType {
	case ServiceOvernight:
		return 1
	case ServiceExpress:
		return 3
	default:
		return 7
	}
}

// EstimatedDelivery returns the promised delivery time for a booking created
// at the given instant.
func EstimatedDelivery(createdAt time.Time, serviceType string) time.Time {
	return createdAt.AddDate(0, 0, DeliveryDays(serviceType))
}
