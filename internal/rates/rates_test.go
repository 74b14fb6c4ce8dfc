package rates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShippingCost(t *testing.T) {
	// (50 + 2*20) * 1.5 + 50 = 185
	assert.Equal(t, 185.0, ShippingCost(2, ServiceExpress, true, false))

	// (50 + 1*20) * 1 = 70
	assert.Equal(t, 70.0, ShippingCost(1, ServiceStandard, false, false))

	// (50 + 1*20) * 2 + 30 = 170
	assert.Equal(t, 170.0, ShippingCost(1, ServiceOvernight, false, true))

	// unknown service falls back to the standard multiplier
	assert.Equal(t, 70.0, ShippingCost(1, "bogus", false, false))

	// fee stacking: (50 + 0.5*20) * 1 + 50 + 30 = 140
	assert.Equal(t, 140.0, ShippingCost(0.5, ServiceStandard, true, true))
}

func TestShippingCostRounds(t *testing.T) {
	// (50 + 1.3*20) * 1.5 = 114 exactly; (50 + 1.33*20) * 1.5 = 114.9 -> 115
	assert.Equal(t, 115.0, ShippingCost(1.33, ServiceExpress, false, false))
}

func TestDeliveryDays(t *testing.T) {
	assert.Equal(t, 1, DeliveryDays(ServiceOvernight))
	assert.Equal(t, 3, DeliveryDays(ServiceExpress))
	assert.Equal(t, 7, DeliveryDays(ServiceStandard))
	assert.Equal(t, 7, DeliveryDays(""))
}

func TestEstimatedDelivery(t *testing.T) {
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, createdAt.AddDate(0, 0, 1), EstimatedDelivery(createdAt, ServiceOvernight))
	assert.Equal(t, createdAt.AddDate(0, 0, 3), EstimatedDelivery(createdAt, ServiceExpress))
	assert.Equal(t, createdAt.AddDate(0, 0, 7), EstimatedDelivery(createdAt, ServiceStandard))
}
