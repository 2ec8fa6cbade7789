package stowage

import (
	"fmt"
)

type opKind uint8

const (
	opAdd opKind = iota + 1
	opDelete
)

// stagedOp is one pending mutation. entity is set for additions only.
type stagedOp struct {
	op     opKind
	key    key
	entity Entity
}

// stage is the ordered list of pending operations. Every backend folds it
// into its committed store on Commit, in program order. stage itself is not
// safe for concurrent use, the owning repository locks around it.
type stage struct {
	ops []stagedOp
}

func (s *stage) add(k key, entity Entity) {
	s.ops = append(s.ops, stagedOp{op: opAdd, key: k, entity: entity})
}

// delete stages the removal of k. Pending additions of k are cancelled
// first, so an add followed by a delete of a never-committed key folds to a
// net no-op instead of a dangling deletion. committed reports whether the
// key currently exists in the committed store.
func (s *stage) delete(k key, committed bool) error {
	cancelled := false
	kept := s.ops[:0]

	for _, op := range s.ops {
		if op.op == opAdd && op.key == k {
			cancelled = true

			continue
		}

		kept = append(kept, op)
	}

	s.ops = kept

	if committed {
		s.ops = append(s.ops, stagedOp{op: opDelete, key: k})

		return nil
	}

	if cancelled {
		return nil
	}

	return fmt.Errorf("%w: no %s with id %v", ErrNotFound, k.kind, k.id)
}

func (s *stage) clear() {
	s.ops = nil
}
