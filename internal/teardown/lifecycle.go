package teardown

import (
	"strconv"

	"rtrace/internal/shadow"
)

type lifecycleEntry struct {
	action       string
	count        int
	promiseCount uint64
}

// LifecycleSummary implements §4.12's summarize(lifecycle): a small
// linearly-scanned list of distinct (action-fingerprint, length)
// pairs, each carrying how many thunks produced that exact sequence.
// A map would also work, but the spec explicitly calls out a linear
// scan of "a small list" — thunk lifecycles in practice collapse into
// a handful of distinct shapes, so the list never grows large enough
// for the difference to matter.
type LifecycleSummary struct {
	entries []*lifecycleEntry
}

// NewLifecycleSummary returns an empty summary.
func NewLifecycleSummary() *LifecycleSummary { return &LifecycleSummary{} }

// Record folds rec into the summary.
func (s *LifecycleSummary) Record(rec shadow.LifecycleRecord) {
	fp := rec.Fingerprint()
	n := rec.Count()
	for _, e := range s.entries {
		if e.action == fp && e.count == n {
			e.promiseCount++
			return
		}
	}
	s.entries = append(s.entries, &lifecycleEntry{action: fp, count: n, promiseCount: 1})
}

// LifecycleHeader returns the promise_lifecycle table's column list.
func LifecycleHeader() []string { return []string{"action", "count", "promise_count"} }

// Rows renders one row per distinct lifecycle shape.
func (s *LifecycleSummary) Rows() [][]string {
	rows := make([][]string, 0, len(s.entries))
	for _, e := range s.entries {
		rows = append(rows, []string{e.action, strconv.Itoa(e.count), strconv.FormatUint(e.promiseCount, 10)})
	}
	return rows
}
