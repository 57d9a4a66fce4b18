package op

import (
	"bidsevents/internal/events"
)

// Novelty labels the first occurrence of each key tuple in table order as
// TrueVal ("novel") and later occurrences as FalseVal ("repeated"). Memory
// tasks use this to tell first presentations from repeats without hand-coding
// the stimulus lists. Rows with a null key component are left unset.
type Novelty struct {
	NewCol   string
	Keys     []string
	Scope    string
	TrueVal  events.Value
	FalseVal events.Value
}

func (o *Novelty) Name() string { return "novelty" }

func (o *Novelty) Apply(rows []events.Row, d *events.Diag) []events.Row {
	if !warnMissingKeyCols(rows, o.Keys, d, o.Name()) {
		return rows
	}
	for _, part := range partition(rows, o.Scope, d, o.Name()) {
		seen := make(map[keyHash]struct{})
		for _, i := range part {
			h, ok := hashKey(rows[i], o.Keys)
			if !ok {
				continue
			}
			if _, dup := seen[h]; dup {
				rows[i][o.NewCol] = o.FalseVal
			} else {
				seen[h] = struct{}{}
				rows[i][o.NewCol] = o.TrueVal
			}
		}
	}
	return rows
}
