package execution

import "fmt"

// NoMarketDataError indicates an order price could not be resolved because
// no usable tick has arrived for the instrument.
type NoMarketDataError struct {
	Instrument string
}

func (e *NoMarketDataError) Error() string {
	return fmt.Sprintf("no market data for %s", e.Instrument)
}

// NoPositionError indicates a close request found nothing to close on the
// relevant side.
type NoPositionError struct {
	Instrument string
	Direction  PositionDirection
}

func (e *NoPositionError) Error() string {
	return fmt.Sprintf("no %s position to close for %s", e.Direction, e.Instrument)
}

// InsufficientPositionError reports a close request that exceeded the
// closable quantity. The engine clamps and proceeds; this error only
// appears in logs, never as a return value.
type InsufficientPositionError struct {
	Instrument string
	Requested  int64
	Available  int64
}

func (e *InsufficientPositionError) Error() string {
	return fmt.Sprintf("insufficient position for %s: requested %d, available %d",
		e.Instrument, e.Requested, e.Available)
}

// VenueRejectionError wraps an order rejection from the counter.
type VenueRejectionError struct {
	Instrument string
	LocalID    string
	Code       int
	Message    string
}

func (e *VenueRejectionError) Error() string {
	return fmt.Sprintf("order %s rejected for %s: [%d] %s",
		e.LocalID, e.Instrument, e.Code, e.Message)
}

// ReconciliationMismatchError reports a divergence between locally tracked
// position state and a counter snapshot. The snapshot always wins; this
// error is diagnostic.
type ReconciliationMismatchError struct {
	Instrument string
	Field      string
	Local      int64
	Counter    int64
}

func (e *ReconciliationMismatchError) Error() string {
	return fmt.Sprintf("position mismatch for %s.%s: local %d, counter %d",
		e.Instrument, e.Field, e.Local, e.Counter)
}

// Venue rejection codes the engine reacts to.
const (
	// 平今仓位不足。Retried once as close-yesterday when yesterday lots exist.
	venueErrInsufficientTodayLot = 50
)

// venueErrorDescriptions maps counter rejection codes to readable text,
// used when the counter omits a message.
var venueErrorDescriptions = map[int]string{
	3:  "instrument not found",
	15: "order field error",
	16: "instrument not trading",
	22: "duplicate order ref",
	23: "bad order ref format",
	26: "order already filled or cancelled",
	30: "insufficient margin",
	31: "insufficient funds",
	42: "price out of limit range",
	50: "insufficient close-today position",
	51: "insufficient close position",
}

// VenueErrorText returns a readable description for a rejection code.
func VenueErrorText(code int, message string) string {
	if message != "" {
		return message
	}
	if desc, ok := venueErrorDescriptions[code]; ok {
		return desc
	}
	return "unknown venue error"
}
