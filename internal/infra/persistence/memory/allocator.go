package memory

import "icetrace/pkg/domain"

// idAllocator hands out per-kind sequential ids starting at zero. It lives inside
// memoryState so a discarded transaction also discards any ids it drew.
type idAllocator struct {
	next map[domain.EntityType]uint64
}

func newIDAllocator() idAllocator {
	return idAllocator{next: make(map[domain.EntityType]uint64, len(domain.EntityTypes()))}
}

// Next reserves and returns the next id for kind.
func (a *idAllocator) Next(kind domain.EntityType) uint64 {
	id := a.next[kind]
	a.next[kind] = id + 1
	return id
}

// Peek returns the id Next would hand out without reserving it.
func (a idAllocator) Peek(kind domain.EntityType) uint64 {
	return a.next[kind]
}

// advance moves the counter for kind forward to at least n. Counters never move backwards.
func (a *idAllocator) advance(kind domain.EntityType, n uint64) {
	if a.next[kind] < n {
		a.next[kind] = n
	}
}

func (a idAllocator) clone() idAllocator {
	out := idAllocator{next: make(map[domain.EntityType]uint64, len(a.next))}
	for k, v := range a.next {
		out.next[k] = v
	}
	return out
}

func (a idAllocator) counters() map[domain.EntityType]uint64 {
	return a.clone().next
}
