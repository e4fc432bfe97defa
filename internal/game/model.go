package game

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"
)

const (
	MicrosPerStonky = int64(1_000_000)

	StarterCashMicros = int64(5_000) * MicrosPerStonky

	ShareScale = int64(10_000) // 1 share = 10_000 units.

	MaxHP = 100

	feeRate = 0.0015
)

var (
	ErrInvalidSymbol        = errors.New("symbol must be exactly 6 uppercase letters")
	ErrStockNotFound        = errors.New("stock not found")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientShares   = errors.New("insufficient shares")
	ErrMarketClosed         = errors.New("market is closed")
	ErrGameOver             = errors.New("game over: hp depleted")
	ErrNoGame               = errors.New("no game in progress")
	ErrUnknownAccount       = errors.New("unknown expense account")
	ErrUnknownRestOption    = errors.New("unknown rest option")
	ErrInvalidSlot          = errors.New("slot must be 1-32 chars of a-z, 0-9, _ or -")
	ErrSlotNotFound         = errors.New("save slot not found")
	ErrDebugDisabled        = errors.New("debug operations are disabled")
	ErrUnknownBoard         = errors.New("unknown community board")
	ErrNoStore              = errors.New("saving is not configured")
	ErrInvalidInput         = errors.New("invalid input")
)

var (
	symbolRE = regexp.MustCompile(`^[A-Z]{6}$`)
	slotRE   = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)
)

func ValidateSymbol(symbol string) error {
	if !symbolRE.MatchString(strings.TrimSpace(symbol)) {
		return ErrInvalidSymbol
	}
	return nil
}

func ValidateSlot(slot string) error {
	if !slotRE.MatchString(slot) {
		return ErrInvalidSlot
	}
	return nil
}

func StonkyToMicros(v float64) int64 {
	return int64(math.Round(v * float64(MicrosPerStonky)))
}

func MicrosToStonky(v int64) float64 {
	return float64(v) / float64(MicrosPerStonky)
}

func SharesToUnits(v float64) (int64, error) {
	if v <= 0 {
		return 0, fmt.Errorf("shares must be > 0")
	}
	return int64(math.Round(v * float64(ShareScale))), nil
}

func UnitsToShares(v int64) float64 {
	return float64(v) / float64(ShareScale)
}

func feeMicros(notional int64) int64 {
	return int64(math.Round(float64(notional) * feeRate))
}

func notionalMicros(priceMicros, qtyUnits int64) (int64, error) {
	p := big.NewInt(priceMicros)
	q := big.NewInt(qtyUnits)
	v := new(big.Int).Mul(p, q)
	v = v.Div(v, big.NewInt(ShareScale))
	if !v.IsInt64() {
		return 0, fmt.Errorf("notional overflow")
	}
	return v.Int64(), nil
}

func divideMicros(totalMicros, qtyUnits int64) (int64, error) {
	if qtyUnits <= 0 {
		return 0, fmt.Errorf("qty must be > 0")
	}
	v := new(big.Int).Mul(big.NewInt(totalMicros), big.NewInt(ShareScale))
	v = v.Div(v, big.NewInt(qtyUnits))
	if !v.IsInt64() {
		return 0, fmt.Errorf("avg overflow")
	}
	return v.Int64(), nil
}

// maxAffordableBuy finds the largest unit count whose notional plus fee fits in cash.
func maxAffordableBuy(priceMicros, cashMicros int64) (maxUnits, maxNotional, maxFee int64) {
	if priceMicros <= 0 || cashMicros <= 0 {
		return 0, 0, 0
	}
	hi := (cashMicros * ShareScale) / priceMicros
	lo := int64(0)
	best := int64(0)
	for lo <= hi {
		mid := lo + (hi-lo)/2
		notional, err := notionalMicros(priceMicros, mid)
		if err != nil {
			hi = mid - 1
			continue
		}
		fee := feeMicros(notional)
		if notional+fee <= cashMicros {
			best = mid
			lo = mid + 1
			maxNotional = notional
			maxFee = fee
			continue
		}
		hi = mid - 1
	}
	return best, maxNotional, maxFee
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
