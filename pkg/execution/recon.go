package execution

// snapshotAccumulator collects directional position fragments for one
// instrument during a reconciliation pass. Counters may deliver several
// fragments per direction; quantities accumulate.
type snapshotAccumulator struct {
	longTotal  int64
	longToday  int64
	longYd     int64
	shortTotal int64
	shortToday int64
	shortYd    int64
	fragments  int
}

func (a *snapshotAccumulator) add(f *SnapshotFragment) {
	a.fragments++
	if f.Direction == DirectionLong {
		a.longTotal += f.Total
		a.longToday += f.Today
		a.longYd += f.Yesterday
	} else {
		a.shortTotal += f.Total
		a.shortToday += f.Today
		a.shortYd += f.Yesterday
	}
}

// reconciliationPass tracks one snapshot round across a set of
// instruments. Fragments accumulate per instrument; the pass finishes when
// every instrument's completion marker has arrived, and only then is the
// merged state applied. An instrument with no fragments legitimately
// resolves to a flat position.
type reconciliationPass struct {
	accum     map[string]*snapshotAccumulator
	completed map[string]bool
	remaining int
}

func newReconciliationPass(instruments []string) *reconciliationPass {
	p := &reconciliationPass{
		accum:     make(map[string]*snapshotAccumulator, len(instruments)),
		completed: make(map[string]bool, len(instruments)),
	}
	for _, sym := range instruments {
		if _, ok := p.completed[sym]; ok {
			continue
		}
		p.accum[sym] = &snapshotAccumulator{}
		p.completed[sym] = false
		p.remaining++
	}
	return p
}

// addFragment folds a fragment in. Fragments for instruments outside the
// pass, or arriving after that instrument completed, are ignored.
func (p *reconciliationPass) addFragment(f *SnapshotFragment) bool {
	done, ok := p.completed[f.Instrument]
	if !ok || done {
		return false
	}
	p.accum[f.Instrument].add(f)
	return true
}

// markComplete records one instrument's completion marker and reports
// whether the whole pass is now complete. Duplicate markers are idempotent.
func (p *reconciliationPass) markComplete(instrument string) (passDone bool) {
	done, ok := p.completed[instrument]
	if !ok || done {
		return p.remaining == 0
	}
	p.completed[instrument] = true
	p.remaining--
	return p.remaining == 0
}
