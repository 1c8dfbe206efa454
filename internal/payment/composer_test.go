package payment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComposerOverPayment(t *testing.T) {
	c := NewComposer(10_000, DefaultPrecision)
	c.AddPayment(Entry{Method: "cash", Amount: 6_000})
	c.AddPayment(Entry{Method: "credit", Amount: 4_000})
	require.Equal(t, 10_000.0, c.TotalApplied())
	require.Zero(t, c.Remaining())
	require.False(t, c.HasBalance())

	c.AddPayment(Entry{Method: "cash", Amount: 500})
	require.Zero(t, c.Remaining())
	require.Equal(t, 10_500.0, c.TotalApplied())
	require.Equal(t, 500.0, c.Overpaid())
}

func TestComposerBalanceWithinHalfCent(t *testing.T) {
	c := NewComposer(10_000, DefaultPrecision)
	c.AddPayment(Entry{Method: "cash", Amount: 9_999.6})
	require.Equal(t, 10_000.0, c.TotalApplied())
	require.Zero(t, c.Remaining())
	require.False(t, c.HasBalance())

	c.ReplacePayments([]Entry{{Method: "cash", Amount: 9_999.4}})
	require.Equal(t, 1.0, c.Remaining())
	require.True(t, c.HasBalance())

	c.ReplacePayments([]Entry{{Method: "cash", Amount: 9_998}})
	require.Equal(t, 2.0, c.Remaining())
	require.True(t, c.HasBalance())
}

func TestComposerSubCentPrecision(t *testing.T) {
	c := NewComposer(10_000, 4)
	c.AddPayment(Entry{Method: "cash", Amount: 9_999.996})
	require.Zero(t, c.Remaining())
	require.False(t, c.HasBalance())

	c.ReplacePayments([]Entry{{Method: "cash", Amount: 9_999.6}})
	require.InDelta(t, 0.4, c.Remaining(), 1e-9)
	require.True(t, c.HasBalance())
}

func TestComposerWholeDollarPrecision(t *testing.T) {
	c := NewComposer(10_000, 0)
	c.AddPayment(Entry{Method: "cash", Amount: 9_960})
	require.Equal(t, 10_000.0, c.TotalApplied())
	require.False(t, c.HasBalance())

	c.ReplacePayments([]Entry{{Method: "cash", Amount: 9_940}})
	require.Equal(t, 100.0, c.Remaining())
	require.True(t, c.HasBalance())
}

func TestComposerRemovePayment(t *testing.T) {
	c := NewComposer(3_000, DefaultPrecision)
	c.AddPayment(Entry{Method: "cash", Amount: 1_000})
	c.AddPayment(Entry{Method: "check", Amount: 2_000})

	c.RemovePayment(5)
	c.RemovePayment(-1)
	require.Len(t, c.Payments(), 2)

	c.RemovePayment(0)
	payments := c.Payments()
	require.Len(t, payments, 1)
	require.Equal(t, "check", payments[0].Method)
	require.Equal(t, 1_000.0, c.Remaining())
	require.True(t, c.HasBalance())

	c.ResetPayments()
	require.Empty(t, c.Payments())
	require.Equal(t, 3_000.0, c.Remaining())
}

func TestComposerDefaultsPrecision(t *testing.T) {
	c := NewComposer(1_000, -1)
	c.AddPayment(Entry{Method: "cash", Amount: 333.33})
	require.Equal(t, 333.0, c.TotalApplied())
	require.Equal(t, 1_000.0, c.Total())
}
