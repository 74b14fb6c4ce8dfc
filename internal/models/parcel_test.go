package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParcelStatusIsValid(t *testing.T) {
	assert.True(t, ParcelScanned.IsValid())
	assert.True(t, ParcelOutForDelivery.IsValid())
	assert.False(t, ParcelStatus("lost").IsValid())
	assert.False(t, ParcelStatus("").IsValid())
}

func TestParcelTransitions(t *testing.T) {
	assert.True(t, ParcelScanned.CanTransition(ParcelInWarehouse))
	assert.True(t, ParcelScanned.CanTransition(ParcelDispatched))
	assert.True(t, ParcelDispatched.CanTransition(ParcelInTransit))
	assert.True(t, ParcelOutForDelivery.CanTransition(ParcelDelivered))
	assert.True(t, ParcelFailed.CanTransition(ParcelReturned))

	// delivered and returned are terminal
	assert.False(t, ParcelDelivered.CanTransition(ParcelReturned))
	assert.False(t, ParcelReturned.CanTransition(ParcelDispatched))

	// no skipping the dispatch step or moving backwards
	assert.False(t, ParcelScanned.CanTransition(ParcelDelivered))
	assert.False(t, ParcelInTransit.CanTransition(ParcelScanned))
	assert.False(t, ParcelInWarehouse.CanTransition(ParcelOutForDelivery))
}

func TestConflictErrorCarriesExisting(t *testing.T) {
	parcel := Parcel{ID: "p1", Barcode: "BC-1"}
	err := NewConflictError("barcode already scanned", parcel)

	assert.True(t, IsConflict(err))

	conflict, ok := AsConflict(err)
	assert.True(t, ok)
	assert.Equal(t, parcel, conflict.Existing)
}

func TestValidationErrorDetection(t *testing.T) {
	err := NewValidationError("weight must be positive, got %v", -1.0)
	assert.True(t, IsValidation(err))
	assert.False(t, IsConflict(err))
	assert.Contains(t, err.Error(), "weight must be positive")
}
