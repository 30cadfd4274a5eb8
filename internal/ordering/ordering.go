// Package ordering assigns and rebalances the numeric order keys that
// position tasks within a day's list.
package ordering

import (
	"sort"

	"focusflow/internal/model"
)

// Gap is the spacing between sequentially assigned order keys. The gap
// leaves room to slot a task between two neighbours without renumbering
// the rest of the bucket.
const Gap = 100

// NextAppend returns the order key for a task appended to the end of a
// bucket: the highest effective key plus Gap, or 0 for an empty bucket.
// Legacy records without an order field count with their createdAt key so
// a new task always lands after them.
func NextAppend(bucket []model.Task) int64 {
	if len(bucket) == 0 {
		return 0
	}
	max := bucket[0].OrderKey()
	for _, t := range bucket[1:] {
		if k := t.OrderKey(); k > max {
			max = k
		}
	}
	return max + Gap
}

// Renumber rewrites every task's order key to index*Gap, in the sequence
// given. Used on a full reorder, where the whole list is touched anyway and
// preserving old gaps buys nothing.
func Renumber(tasks []model.Task) {
	for i := range tasks {
		key := int64(i) * Gap
		tasks[i].Order = &key
	}
}

// Sort orders tasks ascending by effective order key, ties broken by
// createdAt then ID. The extra tie-breaks keep the comparator a strict
// weak ordering even for legacy records sharing a timestamp.
func Sort(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ki, kj := tasks[i].OrderKey(), tasks[j].OrderKey()
		if ki != kj {
			return ki < kj
		}
		if tasks[i].CreatedAt != tasks[j].CreatedAt {
			return tasks[i].CreatedAt < tasks[j].CreatedAt
		}
		return tasks[i].ID < tasks[j].ID
	})
}
