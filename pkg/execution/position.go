package execution

import "log"

// PositionView is an immutable copy of one instrument's position state.
type PositionView struct {
	Instrument string `json:"instrument"`

	Net       int64 `json:"net"`       // 净持仓 = 多头 - 空头
	Today     int64 `json:"today"`     // 净今仓
	Yesterday int64 `json:"yesterday"` // 净昨仓

	LongTotal  int64 `json:"long_total"`
	ShortTotal int64 `json:"short_total"`
	LongToday  int64 `json:"long_today"`
	ShortToday int64 `json:"short_today"`
	LongYd     int64 `json:"long_yd"`
	ShortYd    int64 `json:"short_yd"`
}

// InstrumentState tracks one instrument's position, split by direction and
// by today/yesterday lots. Not safe for concurrent use; the engine guards
// it with the instrument lock.
type InstrumentState struct {
	instrument string

	longToday  int64
	longYd     int64
	shortToday int64
	shortYd    int64
}

func newInstrumentState(instrument string) *InstrumentState {
	return &InstrumentState{instrument: instrument}
}

// View returns a copy of the current state with derived aggregates.
func (s *InstrumentState) View() PositionView {
	longTotal := s.longToday + s.longYd
	shortTotal := s.shortToday + s.shortYd
	return PositionView{
		Instrument: s.instrument,
		Net:        longTotal - shortTotal,
		Today:      s.longToday - s.shortToday,
		Yesterday:  s.longYd - s.shortYd,
		LongTotal:  longTotal,
		ShortTotal: shortTotal,
		LongToday:  s.longToday,
		ShortToday: s.shortToday,
		LongYd:     s.longYd,
		ShortYd:    s.shortYd,
	}
}

// closable returns the today and yesterday lots available to close for the
// given position direction.
func (s *InstrumentState) closable(dir PositionDirection) (today, yd int64) {
	if dir == DirectionLong {
		return s.longToday, s.longYd
	}
	return s.shortToday, s.shortYd
}

// applyFill folds one trade report into the position. Open fills add to
// today lots on the order's side. Close fills reduce the opposite
// direction: close-today reduces today lots first and spills into
// yesterday, close-yesterday reduces yesterday lots only. All sub
// positions clamp at zero.
func (s *InstrumentState) applyFill(side Side, offset OffsetIntent, qty int64) {
	if qty <= 0 {
		return
	}

	switch offset {
	case OffsetOpen:
		if side == SideBuy {
			s.longToday += qty
		} else {
			s.shortToday += qty
		}

	case OffsetCloseToday:
		// Buying closes shorts, selling closes longs.
		if side == SideBuy {
			s.shortToday, s.shortYd = reduceTodayFirst(s.shortToday, s.shortYd, qty, s.instrument)
		} else {
			s.longToday, s.longYd = reduceTodayFirst(s.longToday, s.longYd, qty, s.instrument)
		}

	case OffsetCloseYesterday:
		if side == SideBuy {
			s.shortYd = reduceClamped(s.shortYd, qty, s.instrument, "short_yd")
		} else {
			s.longYd = reduceClamped(s.longYd, qty, s.instrument, "long_yd")
		}
	}
}

// replace overwrites the state with counter-reported lots.
func (s *InstrumentState) replace(longToday, longYd, shortToday, shortYd int64) {
	s.longToday = longToday
	s.longYd = longYd
	s.shortToday = shortToday
	s.shortYd = shortYd
}

func reduceTodayFirst(today, yd, qty int64, instrument string) (int64, int64) {
	fromToday := qty
	if fromToday > today {
		fromToday = today
	}
	today -= fromToday

	rest := qty - fromToday
	if rest > 0 {
		if rest > yd {
			log.Printf("[Position] %s: close fill of %d exceeds tracked lots, clamping", instrument, qty)
			rest = yd
		}
		yd -= rest
	}
	return today, yd
}

func reduceClamped(have, qty int64, instrument, field string) int64 {
	if qty > have {
		log.Printf("[Position] %s: close fill of %d exceeds tracked %s=%d, clamping",
			instrument, qty, field, have)
		qty = have
	}
	return have - qty
}
