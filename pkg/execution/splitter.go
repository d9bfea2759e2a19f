package execution

// CloseSlice is one child order produced by splitting a close request
// across today and yesterday lots.
type CloseSlice struct {
	Offset   OffsetIntent
	Quantity int64
}

// splitClose allocates a close request across available lots following the
// exchange preference: close today first, then yesterday. Returns the
// child slices and the effective (possibly clamped) total quantity.
//
//	qty <= todayAvail            -> one close-today slice
//	todayAvail > 0, qty > today  -> close-today for today lots, close
//	                                yesterday for the rest
//	todayAvail == 0              -> one close-yesterday slice
//
// Requests exceeding the closable total are clamped, never rejected; the
// engine logs an InsufficientPositionError for the overshoot. A zero
// closable total yields no slices.
func splitClose(todayAvail, ydAvail, qty int64) ([]CloseSlice, int64) {
	avail := todayAvail + ydAvail
	if avail <= 0 || qty <= 0 {
		return nil, 0
	}
	if qty > avail {
		qty = avail
	}

	if qty <= todayAvail {
		return []CloseSlice{{Offset: OffsetCloseToday, Quantity: qty}}, qty
	}
	if todayAvail > 0 {
		return []CloseSlice{
			{Offset: OffsetCloseToday, Quantity: todayAvail},
			{Offset: OffsetCloseYesterday, Quantity: qty - todayAvail},
		}, qty
	}
	return []CloseSlice{{Offset: OffsetCloseYesterday, Quantity: qty}}, qty
}
