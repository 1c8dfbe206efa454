package payment

import (
	"math"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bloom/internal/money"
)

// RowStatus is the lifecycle of a split payment row.
type RowStatus string

const (
	RowPending    RowStatus = "pending"
	RowProcessing RowStatus = "processing"
	RowCompleted  RowStatus = "completed"
)

// Tenders used when the planner creates rows on its own.
const (
	TenderCardSquare = "card_square"
	TenderCash       = "cash"
)

// Row is one planned tender of a split payment.
type Row struct {
	ID      string      `json:"id"`
	Tender  string      `json:"tender"`
	Amount  money.Cents `json:"amount"`
	Status  RowStatus   `json:"status"`
	Details string      `json:"details,omitempty"`
}

// SplitPlan divides a total across several tenders. After every change it
// appends a pending cash row for any shortfall larger than MinBalance, so the
// planned rows always cover the total.
type SplitPlan struct {
	total      money.Cents
	MinBalance money.Cents
	rows       []Row
	payments   map[string]Entry
	newID      func() string
}

// NewSplitPlan returns an empty plan for total.
func NewSplitPlan(total money.Cents) *SplitPlan {
	return &SplitPlan{
		total:      total,
		MinBalance: DefaultMinBalance,
		payments:   map[string]Entry{},
		newID:      uuid.NewString,
	}
}

// Rows returns a copy of the planned rows.
func (s *SplitPlan) Rows() []Row {
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Init starts a fresh plan split in half between card and cash.
func (s *SplitPlan) Init() {
	half := money.RoundRatio(s.total, 1, 2)
	remainder := s.total - half
	first, second := half, remainder
	if first <= 0 {
		first = s.total
	}
	if second <= 0 {
		second = half
	}
	s.payments = map[string]Entry{}
	s.update([]Row{
		{ID: s.newID(), Tender: TenderCardSquare, Amount: first, Status: RowPending},
		{ID: s.newID(), Tender: TenderCash, Amount: second, Status: RowPending},
	})
}

// SetTender changes the tender of a pending row.
func (s *SplitPlan) SetTender(id, tender string) {
	s.mutatePending(id, func(r *Row) { r.Tender = tender })
}

// SetAmount changes the amount of a pending row. Negative amounts become zero.
func (s *SplitPlan) SetAmount(id string, amount money.Cents) {
	if amount < 0 {
		amount = 0
	}
	s.mutatePending(id, func(r *Row) { r.Amount = amount })
}

// AddRow appends a cash row for whatever is not yet planned, or half the
// total when the plan is already covered.
func (s *SplitPlan) AddRow() {
	remaining := s.total - s.planned()
	if remaining < 0 {
		remaining = 0
	}
	amount := remaining
	if remaining <= s.MinBalance {
		amount = money.RoundRatio(s.total, 1, 2)
	}
	rows := append(s.Rows(), Row{ID: s.newID(), Tender: TenderCash, Amount: amount, Status: RowPending})
	s.update(rows)
}

// MarkProcessing flags a row as being charged.
func (s *SplitPlan) MarkProcessing(id string) {
	s.mutate(id, func(r *Row) { r.Status = RowProcessing })
}

// Complete records the payment taken for a row.
func (s *SplitPlan) Complete(id string, payment Entry, details string) {
	if s.index(id) < 0 {
		return
	}
	s.payments[id] = payment
	s.mutate(id, func(r *Row) {
		r.Status = RowCompleted
		r.Details = details
	})
}

// Cancel returns a row to pending.
func (s *SplitPlan) Cancel(id string) {
	s.mutate(id, func(r *Row) { r.Status = RowPending })
}

// Reset discards every row and recorded payment.
func (s *SplitPlan) Reset() {
	s.rows = nil
	s.payments = map[string]Entry{}
}

// Paid sums the payments recorded against completed rows.
func (s *SplitPlan) Paid() money.Cents {
	var paid money.Cents
	for _, r := range s.rows {
		if r.Status != RowCompleted {
			continue
		}
		if p, ok := s.payments[r.ID]; ok {
			paid += money.Cents(math.Round(p.Amount))
		}
	}
	return paid
}

// Remaining is max(0, total − paid).
func (s *SplitPlan) Remaining() money.Cents {
	if r := s.total - s.Paid(); r > 0 {
		return r
	}
	return 0
}

// CompletedPayments lists the payments of completed rows in row order.
func (s *SplitPlan) CompletedPayments() []Entry {
	var out []Entry
	for _, r := range s.rows {
		if r.Status != RowCompleted {
			continue
		}
		if p, ok := s.payments[r.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *SplitPlan) planned() money.Cents {
	var sum money.Cents
	for _, r := range s.rows {
		sum += r.Amount
	}
	return sum
}

func (s *SplitPlan) index(id string) int {
	for i, r := range s.rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *SplitPlan) mutate(id string, fn func(*Row)) {
	rows := s.Rows()
	if i := s.index(id); i >= 0 {
		fn(&rows[i])
	}
	s.update(rows)
}

func (s *SplitPlan) mutatePending(id string, fn func(*Row)) {
	rows := s.Rows()
	if i := s.index(id); i >= 0 && rows[i].Status == RowPending {
		fn(&rows[i])
	}
	s.update(rows)
}

func (s *SplitPlan) update(rows []Row) {
	s.rows = s.ensureCoverage(rows)
}

func (s *SplitPlan) ensureCoverage(rows []Row) []Row {
	var planned money.Cents
	for _, r := range rows {
		planned += r.Amount
	}
	if planned < s.total-s.MinBalance {
		rows = append(rows, Row{ID: s.newID(), Tender: TenderCash, Amount: s.total - planned, Status: RowPending})
	}
	return rows
}
