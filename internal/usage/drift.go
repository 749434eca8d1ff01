package usage

import "sort"

// Drift is the change between two reports of the same schema.
type Drift struct {
	PortalDelta  float64
	RecordsDelta int
	NewKeys      []string
	DroppedKeys  []string
}

// Compare reports how cur differs from prev. Key lists are sorted.
func Compare(prev, cur *Report) Drift {
	before := make(map[string]struct{}, len(prev.Keys))
	for _, k := range prev.Keys {
		before[k.Key] = struct{}{}
	}
	d := Drift{
		PortalDelta:  cur.Portal - prev.Portal,
		RecordsDelta: cur.RecordsProcessed - prev.RecordsProcessed,
	}
	for _, k := range cur.Keys {
		if _, ok := before[k.Key]; ok {
			delete(before, k.Key)
			continue
		}
		d.NewKeys = append(d.NewKeys, k.Key)
	}
	for k := range before {
		d.DroppedKeys = append(d.DroppedKeys, k)
	}
	sort.Strings(d.NewKeys)
	sort.Strings(d.DroppedKeys)
	return d
}
