// Trauma memory stream: the ordered record of traumatic events an entity
// carries. The stream is bounded; when full the mildest memory is dropped.
package agents

import "sort"

// RecordTrauma appends a memory to the entity's stream. When the stream holds
// max memories, the lowest-severity memory is replaced if the new one is worse.
func RecordTrauma(e *Entity, m TraumaMemory, max int) {
	mems := e.Psyche.TraumaMemories
	if max <= 0 || len(mems) < max {
		e.Psyche.TraumaMemories = append(mems, m)
		return
	}

	minIdx := 0
	for i := 1; i < len(mems); i++ {
		if mems[i].Severity < mems[minIdx].Severity {
			minIdx = i
		}
	}
	if m.Severity > mems[minIdx].Severity {
		// Keep chronological order: drop the mildest, append the new one.
		e.Psyche.TraumaMemories = append(append(mems[:minIdx:minIdx], mems[minIdx+1:]...), m)
	}
}

// PruneTrauma returns the memories younger than window at world time now,
// preserving order. Memories stamped in the future are kept.
func PruneTrauma(mems []TraumaMemory, now, window float64) []TraumaMemory {
	var kept []TraumaMemory
	for _, m := range mems {
		if now-m.Timestamp < window {
			kept = append(kept, m)
		}
	}
	return kept
}

// RecentTrauma returns the most recent n memories, newest first.
func RecentTrauma(e *Entity, n int) []TraumaMemory {
	if len(e.Psyche.TraumaMemories) == 0 {
		return nil
	}

	sorted := make([]TraumaMemory, len(e.Psyche.TraumaMemories))
	copy(sorted, e.Psyche.TraumaMemories)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
