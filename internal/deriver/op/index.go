package op

import (
	"sort"

	"bidsevents/internal/events"
	"bidsevents/internal/expr"
)

// Index assigns a sequence number per group: rows are partitioned by the
// GroupBy tuple, ordered by OrderBy, and numbered Start, Start+1, ... Rows
// excluded by ApplyTo always receive null, and included rows are renumbered
// contiguously regardless of gaps left by excluded rows. The sort is stable:
// OrderBy ties keep original table order.
type Index struct {
	NewCol  string
	GroupBy []string
	OrderBy string
	Start   int
	ApplyTo expr.Predicate // nil means all rows
}

func (o *Index) Name() string { return "index" }

func (o *Index) Apply(rows []events.Row, d *events.Diag) []events.Row {
	if o.OrderBy != "" && !events.HasColumn(rows, o.OrderBy) {
		d.Warnf(o.Name(), "orderby column %q not present in table; using table order", o.OrderBy)
	}

	// Every row starts null; included rows are overwritten below. Rows whose
	// groupby tuple contains a null also stay null (no group to number in).
	for _, r := range rows {
		r[o.NewCol] = events.Null()
	}

	var idx []int
	for i, r := range rows {
		if o.ApplyTo == nil || o.ApplyTo.Eval(r) {
			idx = append(idx, i)
		}
	}

	for _, group := range groupBy(rows, idx, o.GroupBy) {
		ordered := make([]int, len(group))
		copy(ordered, group)
		if o.OrderBy != "" {
			sort.SliceStable(ordered, func(a, b int) bool {
				return valueLess(rows[ordered[a]].Get(o.OrderBy), rows[ordered[b]].Get(o.OrderBy))
			})
		}
		n := o.Start
		for _, i := range ordered {
			rows[i][o.NewCol] = events.Number(float64(n))
			n++
		}
	}
	return rows
}

// valueLess orders scalar values for sorting: numbers first (by value), then
// strings (lexically), nulls last. Mixed kinds at table scale are rare but
// must still order deterministically.
func valueLess(a, b events.Value) bool {
	an, aIsNum := a.Num()
	bn, bIsNum := b.Num()
	if aIsNum && bIsNum {
		return an < bn
	}
	if aIsNum != bIsNum {
		return aIsNum
	}
	as, aIsStr := a.Str()
	bs, bIsStr := b.Str()
	if aIsStr && bIsStr {
		return as < bs
	}
	if aIsStr != bIsStr {
		return aIsStr
	}
	return false // both null
}
