package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTarget_SameStatusAdvances(t *testing.T) {
	got, err := ResolveTarget(StatusPreparing, StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, StatusReadyForDelivery, got)

	got, err = ResolveTarget(StatusPending, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got)
}

func TestResolveTarget_TerminalFails(t *testing.T) {
	for _, st := range []OrderStatus{StatusDelivered, StatusCancelled} {
		_, err := ResolveTarget(st, st)
		assert.ErrorIs(t, err, ErrFinalState)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = ResolveTarget(st, StatusPending)
		assert.ErrorIs(t, err, ErrFinalState)
	}
}

func TestResolveTarget_NoSkippingConfirmation(t *testing.T) {
	_, err := ResolveTarget(StatusPending, StatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = ResolveTarget(StatusPaid, StatusPreparing)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := ResolveTarget(StatusConfirmed, StatusInDelivery)
	require.NoError(t, err)
	assert.Equal(t, StatusInDelivery, got)
}

func TestResolveTarget_NoBackwards(t *testing.T) {
	_, err := ResolveTarget(StatusReadyForDelivery, StatusPreparing)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolveTarget_CancelFromAnyNonTerminal(t *testing.T) {
	for _, st := range FulfillmentChain[:len(FulfillmentChain)-1] {
		got, err := ResolveTarget(st, StatusCancelled)
		require.NoError(t, err, st)
		assert.Equal(t, StatusCancelled, got)
	}
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("in_delivery")
	require.NoError(t, err)
	assert.Equal(t, StatusInDelivery, st)

	_, err = ParseOrderStatus("shipped")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAllowedTargetsIsForwardOnly(t *testing.T) {
	for _, st := range FulfillmentChain {
		for _, target := range st.AllowedTargets() {
			if target == StatusCancelled {
				continue
			}
			assert.Greater(t, target.Rank(), st.Rank(), "%s -> %s", st, target)
		}
	}
	assert.Empty(t, StatusDelivered.AllowedTargets())
	assert.Equal(t, -1, StatusCancelled.Rank())
}

func TestInsufficientStockError(t *testing.T) {
	var err error = &InsufficientStockError{ProductID: 3, ProductName: "ProductC", Available: 3, Requested: 5}
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.EqualError(t, err, "insufficient stock for ProductC: available 3, requested 5")
}
