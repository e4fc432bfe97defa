package game

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

type ExpenseDef struct {
	Account   string  `yaml:"account" json:"account"`
	Name      string  `yaml:"name" json:"name"`
	Amount    float64 `yaml:"amount" json:"amount"`
	EveryDays int     `yaml:"every_days" json:"every_days"`
	FirstDay  int     `yaml:"first_day" json:"first_day"`
	GraceDays int     `yaml:"grace_days" json:"grace_days"`
	FineBps   int64   `yaml:"fine_bps" json:"fine_bps"`
	HPPenalty int     `yaml:"hp_penalty" json:"hp_penalty"`
}

func (d ExpenseDef) dueOn(day int) bool {
	if d.EveryDays <= 0 || day < d.FirstDay {
		return false
	}
	return (day-d.FirstDay)%d.EveryDays == 0
}

// ExpenseRuntime tracks one issued bill until it is paid in full.
type ExpenseRuntime struct {
	ID              string `json:"id"`
	Account         string `json:"account"`
	Name            string `json:"name"`
	IssuedDay       int    `json:"issued_day"`
	DueDay          int    `json:"due_day"`
	AmountMicros    int64  `json:"amount_micros"`
	RemainingMicros int64  `json:"remaining_micros"`
	FinedMicros     int64  `json:"fined_micros"`
	FineBps         int64  `json:"fine_bps"`
	HPPenalty       int    `json:"hp_penalty"`
	Overdue         bool   `json:"overdue"`
}

type TransferResult struct {
	Account      string `json:"account"`
	AmountMicros int64  `json:"amount_micros"`
	Day          int    `json:"day"`
}

type Allocation struct {
	Account       string   `json:"account"`
	AppliedMicros int64    `json:"applied_micros"`
	ChangeMicros  int64    `json:"change_micros"`
	Settled       []string `json:"settled"`
}

type Penalty struct {
	RuntimeID  string `json:"runtime_id"`
	Account    string `json:"account"`
	FineMicros int64  `json:"fine_micros"`
	HP         int    `json:"hp"`
}

type expensesState struct {
	Queues        map[string][]ExpenseRuntime `json:"queues"`
	IssuedThrough int                         `json:"issued_through"`
}

// ExpenseManager keeps a FIFO queue of unpaid bills per account.
type ExpenseManager struct {
	defs     []ExpenseDef
	accounts map[string]struct{}
	st       expensesState
}

func NewExpenseManager(defs []ExpenseDef) *ExpenseManager {
	m := &ExpenseManager{
		defs:     defs,
		accounts: make(map[string]struct{}, len(defs)),
		st:       expensesState{Queues: map[string][]ExpenseRuntime{}},
	}
	for _, d := range defs {
		m.accounts[d.Account] = struct{}{}
	}
	return m
}

// Issue enqueues every bill that falls due on day. Each day is issued once.
func (m *ExpenseManager) Issue(day int) []ExpenseRuntime {
	if day <= m.st.IssuedThrough {
		return nil
	}
	m.st.IssuedThrough = day
	var out []ExpenseRuntime
	for _, d := range m.defs {
		if !d.dueOn(day) {
			continue
		}
		amount := StonkyToMicros(d.Amount)
		rt := ExpenseRuntime{
			ID:              uuid.NewString(),
			Account:         d.Account,
			Name:            d.Name,
			IssuedDay:       day,
			DueDay:          day + d.GraceDays,
			AmountMicros:    amount,
			RemainingMicros: amount,
			FineBps:         d.FineBps,
			HPPenalty:       d.HPPenalty,
		}
		m.st.Queues[d.Account] = append(m.st.Queues[d.Account], rt)
		out = append(out, rt)
	}
	return out
}

// Apply matches a transfer against the account's bills, oldest first.
// Whatever is left after the queue is cleared comes back as change.
func (m *ExpenseManager) Apply(tr TransferResult) (Allocation, error) {
	account := strings.ToLower(strings.TrimSpace(tr.Account))
	if _, ok := m.accounts[account]; !ok {
		return Allocation{}, fmt.Errorf("%w: %s", ErrUnknownAccount, tr.Account)
	}
	if tr.AmountMicros <= 0 {
		return Allocation{}, fmt.Errorf("transfer amount must be > 0")
	}

	out := Allocation{Account: account}
	left := tr.AmountMicros
	queue := m.st.Queues[account]
	paid := 0
	for i := range queue {
		if left == 0 {
			break
		}
		rt := &queue[i]
		if rt.RemainingMicros <= left {
			left -= rt.RemainingMicros
			rt.RemainingMicros = 0
			out.Settled = append(out.Settled, rt.ID)
			paid++
			continue
		}
		rt.RemainingMicros -= left
		left = 0
	}
	m.st.Queues[account] = append([]ExpenseRuntime(nil), queue[paid:]...)
	if len(m.st.Queues[account]) == 0 {
		delete(m.st.Queues, account)
	}
	out.AppliedMicros = tr.AmountMicros - left
	out.ChangeMicros = left
	return out, nil
}

// Settle runs at the close of day. A bill whose due day has been reached
// without full payment is fined once and then costs HP every settlement
// until cleared.
func (m *ExpenseManager) Settle(day int) []Penalty {
	var out []Penalty
	for _, account := range m.Accounts() {
		queue := m.st.Queues[account]
		for i := range queue {
			rt := &queue[i]
			if day < rt.DueDay {
				continue
			}
			p := Penalty{RuntimeID: rt.ID, Account: account, HP: rt.HPPenalty}
			if !rt.Overdue {
				rt.Overdue = true
				fine := rt.AmountMicros * rt.FineBps / 10_000
				rt.FinedMicros = fine
				rt.RemainingMicros += fine
				p.FineMicros = fine
			}
			out = append(out, p)
		}
	}
	return out
}

func (m *ExpenseManager) Outstanding(account string) int64 {
	var total int64
	for _, rt := range m.st.Queues[strings.ToLower(strings.TrimSpace(account))] {
		total += rt.RemainingMicros
	}
	return total
}

// Due lists unpaid bills grouped by account in queue order.
func (m *ExpenseManager) Due() []ExpenseRuntime {
	var out []ExpenseRuntime
	for _, account := range m.Accounts() {
		out = append(out, m.st.Queues[account]...)
	}
	return out
}

// Accounts returns accounts that currently have unpaid bills, sorted.
func (m *ExpenseManager) Accounts() []string {
	out := make([]string, 0, len(m.st.Queues))
	for account := range m.st.Queues {
		out = append(out, account)
	}
	sort.Strings(out)
	return out
}

func (m *ExpenseManager) Known(account string) bool {
	_, ok := m.accounts[strings.ToLower(strings.TrimSpace(account))]
	return ok
}

func (m *ExpenseManager) state() expensesState {
	queues := make(map[string][]ExpenseRuntime, len(m.st.Queues))
	for k, v := range m.st.Queues {
		queues[k] = append([]ExpenseRuntime(nil), v...)
	}
	return expensesState{Queues: queues, IssuedThrough: m.st.IssuedThrough}
}

func (m *ExpenseManager) restore(st expensesState) {
	m.st = expensesState{Queues: map[string][]ExpenseRuntime{}, IssuedThrough: st.IssuedThrough}
	for k, v := range st.Queues {
		if len(v) > 0 {
			m.st.Queues[k] = append([]ExpenseRuntime(nil), v...)
		}
	}
}
