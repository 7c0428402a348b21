package teardown

import (
	"sort"
	"strconv"
)

// ObjectCounter is a flat per-R-SEXP-type occurrence counter (§4.15,
// grounded on original_source/TracerState.h's increment_object_count
// and serialize_object_count_): one row per host type actually
// observed (e.g. "CLOSXP", "PROMSXP", "ENVSXP"), each with a single
// running count. There is no created/destroyed split — the original
// counter only ever increments, and has no relationship to this
// tracer's own object lifecycle bookkeeping.
type ObjectCounter struct {
	counts map[string]uint64
}

// NewObjectCounter returns a zeroed counter.
func NewObjectCounter() *ObjectCounter {
	return &ObjectCounter{counts: make(map[string]uint64)}
}

// Observe bumps the occurrence counter for sexpType. An empty type
// (a host that declines to classify a handle) is not counted.
func (c *ObjectCounter) Observe(sexpType string) {
	if sexpType == "" {
		return
	}
	c.counts[sexpType]++
}

// Header returns the object_count table's column list.
func Header() []string { return []string{"type", "count"} }

// Rows renders one row per observed type, sorted by type name for
// deterministic output, mirroring serialize_object_count_'s skip of
// any type never observed.
func (c *ObjectCounter) Rows() [][]string {
	types := make([]string, 0, len(c.counts))
	for t := range c.counts {
		types = append(types, t)
	}
	sort.Strings(types)
	rows := make([][]string, 0, len(types))
	for _, t := range types {
		rows = append(rows, []string{t, strconv.FormatUint(c.counts[t], 10)})
	}
	return rows
}
