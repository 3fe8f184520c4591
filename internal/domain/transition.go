package domain

import "fmt"

// Op is the single store operation a vote request resolves to.
type Op int

const (
	OpInsert Op = iota + 1
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Decision is the outcome of Decide: the operation to apply and, for insert
// and update, the value to store.
type Decision struct {
	Op    Op
	Value VoteValue
}

// Result returns the vote the voter holds once the decision is applied, or
// nil when the decision removes it.
func (d Decision) Result() *VoteValue {
	if d.Op == OpDelete {
		return nil
	}
	v := d.Value
	return &v
}

// Decide computes the transition for a voter whose stored vote is current
// (nil when there is none) and who requests the given value.
//
//	current  requested  decision
//	none     ±1         insert(requested)
//	+1       +1         delete
//	-1       -1         delete
//	+1       -1         update(-1)
//	-1       +1         update(+1)
//
// Decide is pure; callers run it inside the same atomic section that read
// current and that will apply the result.
func Decide(current *VoteValue, requested VoteValue) (Decision, error) {
	if !requested.Valid() {
		return Decision{}, ErrInvalidVoteValue
	}
	if current == nil {
		return Decision{Op: OpInsert, Value: requested}, nil
	}
	if !current.Valid() {
		return Decision{}, fmt.Errorf("stored vote %d is not a valid value", int(*current))
	}
	if *current == requested {
		return Decision{Op: OpDelete}, nil
	}
	return Decision{Op: OpUpdate, Value: requested}, nil
}
