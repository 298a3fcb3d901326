// Package host provides the execution environment shared by the protocol
// components: the transaction, the ledger clock, the set of identities that
// authorized the current call, and the event journal.
package host

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/store"
)

// Env is the per-operation environment. It is not safe for concurrent use.
type Env struct {
	Tx  store.Tx
	Now time.Time

	callers map[model.Address]struct{}
	events  *[]model.Event
}

// New returns an Env over tx in which callers have authorized the call.
func New(tx store.Tx, now time.Time, callers ...model.Address) *Env {
	set := make(map[model.Address]struct{}, len(callers))
	for _, c := range callers {
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return &Env{
		Tx:      tx,
		Now:     now.UTC().Truncate(time.Second),
		callers: set,
		events:  &[]model.Event{},
	}
}

// RequireAuth fails with ErrUnauthorized unless addr authorized the call.
func (e *Env) RequireAuth(addr model.Address) error {
	if addr == "" {
		return eris.Wrap(model.ErrUnauthorized, "empty address")
	}
	if _, ok := e.callers[addr]; !ok {
		return eris.Wrapf(model.ErrUnauthorized, "%s did not authorize this call", addr)
	}
	return nil
}

// As returns an Env in which self has also authorized the call. It is used
// when one component invokes another under its own contract identity. The
// transaction and event journal are shared with e.
func (e *Env) As(self model.Address) *Env {
	set := make(map[model.Address]struct{}, len(e.callers)+1)
	for c := range e.callers {
		set[c] = struct{}{}
	}
	if self != "" {
		set[self] = struct{}{}
	}
	return &Env{Tx: e.Tx, Now: e.Now, callers: set, events: e.events}
}

// Emit persists an event in the current transaction and records it for
// publication after commit.
func (e *Env) Emit(ctx context.Context, kind model.EventKind, entityID string) error {
	ev := model.Event{
		ID:       uuid.NewString(),
		Kind:     kind,
		EntityID: entityID,
		At:       e.Now,
	}
	if err := e.Tx.InsertEvent(ctx, &ev); err != nil {
		return eris.Wrapf(err, "emit %s", kind)
	}
	*e.events = append(*e.events, ev)
	return nil
}

// EmitID is Emit for numeric entity ids.
func (e *Env) EmitID(ctx context.Context, kind model.EventKind, id uint64) error {
	return e.Emit(ctx, kind, strconv.FormatUint(id, 10))
}

// Events returns the events emitted so far, in order.
func (e *Env) Events() []model.Event {
	out := make([]model.Event, len(*e.events))
	copy(out, *e.events)
	return out
}

// Transfer journals a native-asset movement. Zero amounts are not recorded.
func (e *Env) Transfer(ctx context.Context, t model.Transfer) error {
	if t.Amount == 0 {
		return nil
	}
	if t.Amount < 0 {
		return eris.Wrapf(model.ErrValidation, "negative %s transfer", t.Kind)
	}
	t.ID = uuid.NewString()
	t.At = e.Now
	return eris.Wrapf(e.Tx.InsertTransfer(ctx, &t), "journal %s transfer", t.Kind)
}
