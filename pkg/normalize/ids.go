package normalize

import (
	"strconv"

	"github.com/openfroyo/pakit/pkg/control"
)

// IDAllocator hands out ControlUniqueId values that are not used by any
// tree of the run.
type IDAllocator struct {
	next int64
}

// NewIDAllocator starts after the highest numeric ControlUniqueId found in
// roots. Non-numeric ids are ignored.
func NewIDAllocator(roots ...*control.Control) *IDAllocator {
	a := &IDAllocator{next: 1}
	for _, root := range roots {
		control.Walk(root, func(c *control.Control) bool {
			a.Observe(c.ControlUniqueID)
			return true
		})
	}
	return a
}

// Observe marks id as used.
func (a *IDAllocator) Observe(id string) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return
	}
	if n >= a.next {
		a.next = n + 1
	}
}

// Next returns a fresh id.
func (a *IDAllocator) Next() string {
	id := a.next
	a.next++
	return strconv.FormatInt(id, 10)
}

// freshName returns prefix<N> for the smallest N >= 1 not in names and
// records it.
func freshName(names control.NameSet, prefix string) string {
	for n := 1; ; n++ {
		name := prefix + strconv.Itoa(n)
		if !names.Has(name) {
			names.Add(name)
			return name
		}
	}
}
