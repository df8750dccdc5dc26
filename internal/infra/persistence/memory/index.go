package memory

import "icetrace/pkg/domain"

// relationIndex keeps, per relation and parent id, the child ids in insertion order.
// It never checks that a parent exists; that is the transaction's job.
type relationIndex struct {
	edges map[domain.Relation]map[uint64][]uint64
}

func newRelationIndex() relationIndex {
	return relationIndex{edges: make(map[domain.Relation]map[uint64][]uint64)}
}

func (x *relationIndex) append(rel domain.Relation, parentID, childID uint64) {
	parents, ok := x.edges[rel]
	if !ok {
		parents = make(map[uint64][]uint64)
		x.edges[rel] = parents
	}
	parents[parentID] = append(parents[parentID], childID)
}

// children returns a copy of the child ids for parentID. Unknown parents yield nil.
func (x relationIndex) children(rel domain.Relation, parentID uint64) []uint64 {
	ids := x.edges[rel][parentID]
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

func (x relationIndex) clone() relationIndex {
	out := relationIndex{edges: make(map[domain.Relation]map[uint64][]uint64, len(x.edges))}
	for rel, parents := range x.edges {
		cp := make(map[uint64][]uint64, len(parents))
		for parentID, ids := range parents {
			// full slice expression caps capacity so appends in the clone never alias the original
			cp[parentID] = ids[:len(ids):len(ids)]
		}
		out.edges[rel] = cp
	}
	return out
}
