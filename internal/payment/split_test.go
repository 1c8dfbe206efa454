package payment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bloom/internal/money"
)

func newTestPlan(total money.Cents) *SplitPlan {
	plan := NewSplitPlan(total)
	n := 0
	plan.newID = func() string {
		n++
		return fmt.Sprintf("split-%d", n)
	}
	return plan
}

func TestSplitInit(t *testing.T) {
	plan := newTestPlan(10_001)
	plan.Init()
	rows := plan.Rows()
	require.Len(t, rows, 2)
	require.Equal(t, TenderCardSquare, rows[0].Tender)
	require.Equal(t, money.Cents(5_001), rows[0].Amount)
	require.Equal(t, TenderCash, rows[1].Tender)
	require.Equal(t, money.Cents(5_000), rows[1].Amount)
	require.Equal(t, money.Cents(10_001), plan.Remaining())
}

func TestSplitEnsuresCoverage(t *testing.T) {
	plan := newTestPlan(10_000)
	plan.Init()
	plan.SetAmount("split-1", 2_000)
	rows := plan.Rows()
	require.Len(t, rows, 3)
	require.Equal(t, "split-3", rows[2].ID)
	require.Equal(t, TenderCash, rows[2].Tender)
	require.Equal(t, money.Cents(3_000), rows[2].Amount)

	// A one cent shortfall is tolerated.
	plan.SetAmount("split-3", 2_999)
	require.Len(t, plan.Rows(), 3)
}

func TestSplitOnlyPendingRowsChange(t *testing.T) {
	plan := newTestPlan(10_000)
	plan.Init()
	plan.MarkProcessing("split-1")
	plan.SetTender("split-1", "gift_card")
	plan.SetAmount("split-1", 1)
	rows := plan.Rows()
	require.Equal(t, TenderCardSquare, rows[0].Tender)
	require.Equal(t, money.Cents(5_000), rows[0].Amount)
	require.Equal(t, RowProcessing, rows[0].Status)

	plan.Cancel("split-1")
	plan.SetTender("split-1", "gift_card")
	require.Equal(t, "gift_card", plan.Rows()[0].Tender)
}

func TestSplitCompleteAndPaid(t *testing.T) {
	plan := newTestPlan(10_000)
	plan.Init()
	plan.Complete("split-1", Entry{Method: "credit", Amount: 5_000}, "Visa • **** 4242")
	plan.Complete("missing", Entry{Method: "cash", Amount: 999}, "")

	require.Equal(t, money.Cents(5_000), plan.Paid())
	require.Equal(t, money.Cents(5_000), plan.Remaining())
	require.Len(t, plan.CompletedPayments(), 1)
	require.Equal(t, "Visa • **** 4242", plan.Rows()[0].Details)

	plan.Complete("split-2", Entry{Method: "cash", Amount: 5_500}, "")
	require.Zero(t, plan.Remaining())

	plan.Reset()
	require.Empty(t, plan.Rows())
	require.Zero(t, plan.Paid())
}

func TestSplitAddRow(t *testing.T) {
	plan := newTestPlan(10_000)
	plan.Init()
	plan.AddRow()
	rows := plan.Rows()
	require.Len(t, rows, 3)
	require.Equal(t, money.Cents(5_000), rows[2].Amount)

	empty := newTestPlan(10_000)
	empty.AddRow()
	require.Len(t, empty.Rows(), 1)
	require.Equal(t, money.Cents(10_000), empty.Rows()[0].Amount)
}
