package syncer

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

type Kind string

const (
	KindProductAdd      Kind = "product.add"
	KindProductUpdate   Kind = "product.update"
	KindProductDelete   Kind = "product.delete"
	KindProductsCleanup Kind = "products.cleanup"
	KindOrderCreate     Kind = "order.create"
	KindOrderUpdate     Kind = "order.update"
	KindSettingsSave    Kind = "settings.save"
	KindUserSave        Kind = "user.save"
)

// replaces reports whether a newer op of this kind supersedes a pending one
// with the same key. These ops always carry the full record.
func (k Kind) replaces() bool {
	switch k {
	case KindProductUpdate, KindOrderUpdate, KindSettingsSave, KindUserSave:
		return true
	}
	return false
}

// Op is one pending remote write.
type Op struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"lastError,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

func NewOp(kind Kind, key string, payload any) (Op, error) {
	op := Op{ID: uuid.NewString(), Kind: kind, Key: key, EnqueuedAt: time.Now().UTC()}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Op{}, storeerr.InvalidInput("encode %s payload: %v", kind, err)
		}
		op.Payload = b
	}
	return op, nil
}

type Dispatcher interface {
	Dispatch(ctx context.Context, op Op) error
}

type DispatchFunc func(ctx context.Context, op Op) error

func (f DispatchFunc) Dispatch(ctx context.Context, op Op) error { return f(ctx, op) }

type DrainReport struct {
	Sent      int
	Dropped   int
	Remaining int
	// Err is the retryable failure that stopped the drain, if any.
	Err error
}

// Outbox delivers remote writes in submission order. Ops that fail with a
// retryable error stay queued in the journal until a later drain.
type Outbox struct {
	mu       sync.Mutex
	journal  Journal
	dispatch Dispatcher
	log      *log.Logger
	queue    []Op
}

func NewOutbox(j Journal, d Dispatcher, l *log.Logger) (*Outbox, error) {
	if j == nil {
		j = &MemoryJournal{}
	}
	if l == nil {
		l = log.Default()
	}
	ops, err := j.Load()
	if err != nil {
		return nil, err
	}
	return &Outbox{journal: j, dispatch: d, log: l, queue: ops}, nil
}

// Submit returns nil once op reached the remote. A retryable failure leaves
// op queued and is returned; a permanent one drops it.
func (o *Outbox) Submit(ctx context.Context, op Op) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.queue) == 0 {
		err := o.dispatch.Dispatch(ctx, op)
		if err == nil {
			return nil
		}
		if !storeerr.Retryable(err) {
			o.log.Printf("outbox: drop %s %s: %v", op.Kind, op.Key, err)
			return err
		}
		op.Attempts++
		op.LastError = err.Error()
		o.queue = append(o.queue, op)
		o.persist()
		o.log.Printf("outbox: queued %s %s: %v", op.Kind, op.Key, err)
		return err
	}

	o.enqueue(op)
	o.persist()
	rep := o.drain(ctx)
	for _, p := range o.queue {
		if p.ID == op.ID {
			return rep.Err
		}
	}
	return nil
}

func (o *Outbox) Drain(ctx context.Context) DrainReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.drain(ctx)
}

// Pending returns a copy of the queue, oldest first.
func (o *Outbox) Pending() []Op {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Op(nil), o.queue...)
}

func (o *Outbox) enqueue(op Op) {
	if op.Kind.replaces() {
		for i := range o.queue {
			if o.queue[i].Kind == op.Kind && o.queue[i].Key == op.Key {
				o.queue[i] = op
				return
			}
		}
	}
	o.queue = append(o.queue, op)
}

func (o *Outbox) drain(ctx context.Context) DrainReport {
	var rep DrainReport
	defer func() {
		rep.Remaining = len(o.queue)
		o.persist()
	}()
	for len(o.queue) > 0 {
		if err := ctx.Err(); err != nil {
			rep.Err = err
			return rep
		}
		op := o.queue[0]
		err := o.dispatch.Dispatch(ctx, op)
		switch {
		case err == nil:
			rep.Sent++
			o.queue = o.queue[1:]
		case storeerr.Retryable(err):
			o.queue[0].Attempts++
			o.queue[0].LastError = err.Error()
			rep.Err = err
			return rep
		default:
			o.log.Printf("outbox: drop %s %s after %d attempts: %v", op.Kind, op.Key, op.Attempts+1, err)
			rep.Dropped++
			o.queue = o.queue[1:]
		}
	}
	return rep
}

func (o *Outbox) persist() {
	if err := o.journal.Save(o.queue); err != nil {
		o.log.Printf("outbox: journal save failed: %v", err)
	}
}
