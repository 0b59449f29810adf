package model

import "github.com/shopspring/decimal"

// MorningBreaker is the Morning Breaker Entry switch of a signal row.
type MorningBreaker string

const (
	BreakerOn  MorningBreaker = "ON"
	BreakerOff MorningBreaker = "OFF"
)

// ReverseSignal is the Reverse Signal Detected flag of a signal row.
type ReverseSignal string

const (
	ReverseYes ReverseSignal = "YES"
	ReverseNo  ReverseSignal = "NO"
)

// Signal is one trading alert read from the Signals table.
// Stop, Entry and Target are only populated when MorningBreakerEntry is ON.
type Signal struct {
	Trend                 string
	TrendScore            decimal.Decimal
	TrendLockActivated    string
	Securities            string
	MorningBreakerEntry   MorningBreaker
	Stop                  string
	Entry                 string
	Target                string
	ReverseSignalDetected ReverseSignal
	Ready                 bool
}

// BreakerOn reports whether the stop/entry/target levels apply.
func (s *Signal) BreakerOn() bool {
	return s.MorningBreakerEntry == BreakerOn
}

// QueuedSignal pairs a ready signal with the row that produced it.
type QueuedSignal struct {
	Signal Signal
	RowID  int64
}
