package game

import "testing"

func TestValidateSymbol(t *testing.T) {
	valid := []string{"ABCDEF", "NIMBUS", "COBOLT"}
	for _, s := range valid {
		if err := ValidateSymbol(s); err != nil {
			t.Fatalf("expected symbol %q to be valid: %v", s, err)
		}
	}

	invalid := []string{"abc123", "ABC12", "TOOLONG7", "A_BCD1"}
	for _, s := range invalid {
		if err := ValidateSymbol(s); err == nil {
			t.Fatalf("expected symbol %q to fail", s)
		}
	}
}

func TestValidateSlot(t *testing.T) {
	for _, s := range []string{"main", "run-2", "a_b", "x"} {
		if err := ValidateSlot(s); err != nil {
			t.Fatalf("expected slot %q to be valid: %v", s, err)
		}
	}
	for _, s := range []string{"", "Main", "../etc", "has space", "abcdefghijklmnopqrstuvwxyz0123456789"} {
		if err := ValidateSlot(s); err == nil {
			t.Fatalf("expected slot %q to fail", s)
		}
	}
}

func TestNotionalMicros(t *testing.T) {
	price := int64(150 * MicrosPerStonky)
	qty := int64(25 * ShareScale / 10) // 2.5 shares
	got, err := notionalMicros(price, qty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := int64(375 * MicrosPerStonky)
	if got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestStonkyConversions(t *testing.T) {
	tests := []struct {
		stonky float64
		micros int64
	}{
		{stonky: 0, micros: 0},
		{stonky: 1.5, micros: 1_500_000},
		{stonky: 0.000001, micros: 1},
		{stonky: 5000, micros: StarterCashMicros},
	}
	for _, tc := range tests {
		if got := StonkyToMicros(tc.stonky); got != tc.micros {
			t.Fatalf("StonkyToMicros(%v)=%d want %d", tc.stonky, got, tc.micros)
		}
	}
	if _, err := SharesToUnits(0); err == nil {
		t.Fatalf("expected zero shares to fail")
	}
	units, err := SharesToUnits(1.25)
	if err != nil || units != 12_500 {
		t.Fatalf("SharesToUnits(1.25)=%d,%v", units, err)
	}
}

func TestMaxAffordableBuy(t *testing.T) {
	price := int64(840 * MicrosPerStonky)
	cash := int64(19_025) * MicrosPerStonky

	units, notional, fee := maxAffordableBuy(price, cash)
	if units <= 0 {
		t.Fatalf("expected affordable units > 0")
	}
	total := notional + fee
	if total > cash {
		t.Fatalf("total %d exceeds cash %d", total, cash)
	}

	nextUnits := units + 1
	nextNotional, err := notionalMicros(price, nextUnits)
	if err != nil {
		t.Fatalf("notional error: %v", err)
	}
	if nextNotional+feeMicros(nextNotional) <= cash {
		t.Fatalf("expected units+1 to be unaffordable")
	}
}

func TestMaxAffordableBuyNoCash(t *testing.T) {
	units, notional, fee := maxAffordableBuy(100*MicrosPerStonky, 0)
	if units != 0 || notional != 0 || fee != 0 {
		t.Fatalf("expected zero buy, got %d/%d/%d", units, notional, fee)
	}
}
