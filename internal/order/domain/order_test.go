package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(t *testing.T, status OrderStatus) Order {
	t.Helper()
	o, err := NewOrder("user-1", decimal.NewFromInt(100), decimal.NewFromInt(5), Address{Address: "1 Main St"}, nil)
	require.NoError(t, err)
	o.Status = status
	return o
}

func TestNewOrderDefaults(t *testing.T) {
	o, err := NewOrder("user-1", decimal.RequireFromString("99.90"), decimal.NewFromInt(5), Address{Address: "1 Main St", City: "Porto"}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, DefaultShippingProvider, o.ShippingProvider)
	assert.Equal(t, o.ShippingAddress, o.BillingAddress)
	assert.Equal(t, 1, o.Version)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), o.EstimatedDeliveryDate, time.Minute)
}

func TestNewOrderDistinctBilling(t *testing.T) {
	billing := Address{Address: "2 Invoice Rd"}
	o, err := NewOrder("user-1", decimal.NewFromInt(10), decimal.Zero, Address{Address: "1 Main St"}, &billing)
	require.NoError(t, err)
	assert.Equal(t, billing, o.BillingAddress)
}

func TestNewOrderRejectsMissingAddress(t *testing.T) {
	_, err := NewOrder("user-1", decimal.NewFromInt(10), decimal.Zero, Address{City: "Porto"}, nil)
	assert.ErrorIs(t, err, ErrInvalidOrderRequest)
}

func TestNewLineItemSubtotal(t *testing.T) {
	it, err := NewLineItem(42, 3, decimal.RequireFromString("19.99"))
	require.NoError(t, err)
	assert.True(t, it.Subtotal.Equal(decimal.RequireFromString("59.97")), "subtotal %s", it.Subtotal)
}

func TestNewLineItemRejectsNonPositiveQuantity(t *testing.T) {
	_, err := NewLineItem(42, 0, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidOrderRequest)

	_, err = NewLineItem(42, -2, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidOrderRequest)
}

func TestTrackingNumberFormat(t *testing.T) {
	re := regexp.MustCompile(`^TRK-\d{13}-[0-9A-F]{8}$`)
	for i := 0; i < 10; i++ {
		assert.Regexp(t, re, NewTrackingNumber())
	}
}

func TestStatusTransitionTable(t *testing.T) {
	all := []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}
	legal := map[OrderStatus]map[OrderStatus]bool{
		StatusPending:    {StatusProcessing: true, StatusCancelled: true},
		StatusProcessing: {StatusShipped: true, StatusCancelled: true},
		StatusShipped:    {StatusDelivered: true},
		StatusDelivered:  {},
		StatusCancelled:  {},
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestConfirmPayment(t *testing.T) {
	o := testOrder(t, StatusPending)
	require.NoError(t, o.ConfirmPayment())
	assert.Equal(t, StatusProcessing, o.Status)
	assert.Equal(t, 2, o.Version)

	o = testOrder(t, StatusShipped)
	err := o.ConfirmPayment()
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StatusShipped, o.Status, "failed transition must not change state")
}

func TestMarkShipped(t *testing.T) {
	o := testOrder(t, StatusProcessing)
	placeholder := o.TrackingNumber

	require.NoError(t, o.MarkShipped("1Z999", "UPS"))
	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, "1Z999", o.TrackingNumber)
	assert.Equal(t, "UPS", o.ShippingProvider)
	assert.NotEqual(t, placeholder, o.TrackingNumber)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 5), o.EstimatedDeliveryDate, time.Minute)

	// Second shipment attempt must fail and change nothing.
	err := o.MarkShipped("1Z000", "FedEx")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, "1Z999", o.TrackingNumber)
}

func TestMarkShippedKeepsPlaceholderWhenBlank(t *testing.T) {
	o := testOrder(t, StatusProcessing)
	placeholder := o.TrackingNumber
	require.NoError(t, o.MarkShipped("", "  "))
	assert.Equal(t, placeholder, o.TrackingNumber)
	assert.Equal(t, DefaultShippingProvider, o.ShippingProvider)
}

func TestMarkDelivered(t *testing.T) {
	o := testOrder(t, StatusShipped)
	require.NoError(t, o.MarkDelivered())
	assert.Equal(t, StatusDelivered, o.Status)
	assert.WithinDuration(t, time.Now(), o.EstimatedDeliveryDate, time.Minute)

	o = testOrder(t, StatusPending)
	assert.ErrorIs(t, o.MarkDelivered(), ErrIllegalTransition)
}

func TestCancel(t *testing.T) {
	for _, from := range []OrderStatus{StatusPending, StatusProcessing} {
		o := testOrder(t, from)
		require.NoError(t, o.Cancel(), "cancel from %s", from)
		assert.Equal(t, StatusCancelled, o.Status)
	}
	for _, from := range []OrderStatus{StatusShipped, StatusDelivered, StatusCancelled} {
		o := testOrder(t, from)
		assert.ErrorIs(t, o.Cancel(), ErrIllegalTransition, "cancel from %s", from)
		assert.Equal(t, from, o.Status)
	}
}

func TestForceStatus(t *testing.T) {
	o := testOrder(t, StatusDelivered)
	require.NoError(t, o.ForceStatus(StatusPending), "override ignores the forward path")
	assert.Equal(t, StatusPending, o.Status)

	assert.ErrorIs(t, o.ForceStatus("refunded"), ErrInvalidStatus)
}

func TestItemCount(t *testing.T) {
	o := testOrder(t, StatusPending)
	o.Items = []LineItem{{Quantity: 2}, {Quantity: 5}}
	assert.Equal(t, 7, o.ItemCount())
}
