package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func rentDef() ExpenseDef {
	return ExpenseDef{Account: "rent", Name: "Rent", Amount: 100, EveryDays: 1, FirstDay: 1, GraceDays: 1, FineBps: 1000, HPPenalty: 5}
}

func TestExpenseDueOn(t *testing.T) {
	d := ExpenseDef{EveryDays: 3, FirstDay: 2}
	var days []int
	for day := 1; day <= 9; day++ {
		if d.dueOn(day) {
			days = append(days, day)
		}
	}
	require.Equal(t, []int{2, 5, 8}, days)
}

func TestExpenseIssueOncePerDay(t *testing.T) {
	m := NewExpenseManager([]ExpenseDef{rentDef()})
	issued := m.Issue(1)
	require.Len(t, issued, 1)
	require.Equal(t, 2, issued[0].DueDay)
	require.Equal(t, 100*MicrosPerStonky, issued[0].RemainingMicros)
	require.Nil(t, m.Issue(1))
	require.Equal(t, 100*MicrosPerStonky, m.Outstanding("rent"))
}

func TestExpenseApplyFIFO(t *testing.T) {
	m := NewExpenseManager([]ExpenseDef{rentDef()})
	first := m.Issue(1)[0]
	second := m.Issue(2)[0]

	alloc, err := m.Apply(TransferResult{Account: "RENT", AmountMicros: 150 * MicrosPerStonky, Day: 2})
	require.NoError(t, err)
	require.Equal(t, []string{first.ID}, alloc.Settled)
	require.Equal(t, 150*MicrosPerStonky, alloc.AppliedMicros)
	require.Zero(t, alloc.ChangeMicros)
	require.Equal(t, 50*MicrosPerStonky, m.Outstanding("rent"))

	alloc, err = m.Apply(TransferResult{Account: "rent", AmountMicros: 80 * MicrosPerStonky, Day: 2})
	require.NoError(t, err)
	require.Equal(t, []string{second.ID}, alloc.Settled)
	require.Equal(t, 50*MicrosPerStonky, alloc.AppliedMicros)
	require.Equal(t, 30*MicrosPerStonky, alloc.ChangeMicros)
	require.Empty(t, m.Accounts())
	require.Empty(t, m.Due())
}

func TestExpenseApplyRejectsBadTransfers(t *testing.T) {
	m := NewExpenseManager([]ExpenseDef{rentDef()})
	_, err := m.Apply(TransferResult{Account: "casino", AmountMicros: 1})
	require.True(t, errors.Is(err, ErrUnknownAccount))
	_, err = m.Apply(TransferResult{Account: "rent", AmountMicros: 0})
	require.Error(t, err)

	alloc, err := m.Apply(TransferResult{Account: "rent", AmountMicros: 7})
	require.NoError(t, err)
	require.Zero(t, alloc.AppliedMicros)
	require.Equal(t, int64(7), alloc.ChangeMicros)
}

func TestExpenseSettleFinesOnce(t *testing.T) {
	m := NewExpenseManager([]ExpenseDef{rentDef()})
	m.Issue(1)

	require.Empty(t, m.Settle(1))

	penalties := m.Settle(2)
	require.Len(t, penalties, 1)
	require.Equal(t, 10*MicrosPerStonky, penalties[0].FineMicros)
	require.Equal(t, 5, penalties[0].HP)
	require.Equal(t, 110*MicrosPerStonky, m.Outstanding("rent"))

	penalties = m.Settle(3)
	require.Len(t, penalties, 1)
	require.Zero(t, penalties[0].FineMicros)
	require.Equal(t, 5, penalties[0].HP)
	require.Equal(t, 110*MicrosPerStonky, m.Outstanding("rent"))

	due := m.Due()
	require.True(t, due[0].Overdue)
	require.Equal(t, 10*MicrosPerStonky, due[0].FinedMicros)
}

func TestExpensePartialPaymentKeepsOverdue(t *testing.T) {
	m := NewExpenseManager([]ExpenseDef{rentDef()})
	m.Issue(1)
	m.Settle(2)
	_, err := m.Apply(TransferResult{Account: "rent", AmountMicros: 100 * MicrosPerStonky})
	require.NoError(t, err)
	require.Equal(t, 10*MicrosPerStonky, m.Outstanding("rent"))
	require.Len(t, m.Settle(3), 1)
}

func TestExpenseStateRestore(t *testing.T) {
	m := NewExpenseManager([]ExpenseDef{rentDef()})
	m.Issue(1)
	m.Issue(2)

	other := NewExpenseManager([]ExpenseDef{rentDef()})
	other.restore(m.state())
	require.Equal(t, m.Due(), other.Due())
	require.Nil(t, other.Issue(2))
	require.Len(t, other.Issue(3), 1)
}
