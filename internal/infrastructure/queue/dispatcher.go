package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/arkind/identity-api/internal/api/metrics"
	"github.com/arkind/identity-api/internal/core/domain"
	"github.com/arkind/identity-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
)

// Dispatcher routes audit events to a fixed set of workers using consistent
// hashing on the account, guaranteeing per-account trail ordering.
type Dispatcher struct {
	workers []chan domain.AuthEvent
	audits  ports.AuditRepository
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, audits ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuthEvent, numWorkers),
		audits:  audits,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuthEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// events still buffered at that point are lost.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands an event to the worker responsible for its account. The
// trail is best-effort: when the worker's buffer is full the event is
// dropped rather than stalling the request that produced it.
func (d *Dispatcher) Enqueue(event domain.AuthEvent) {
	select {
	case d.workers[d.shardIndex(shardKey(event))] <- event:
	default:
		d.log.Warn().Str("action", string(event.Action)).Msg("audit buffer full, event dropped")
	}
}

// shardKey prefers the account id; attempts that never resolved to an
// account shard by the email they presented.
func shardKey(event domain.AuthEvent) string {
	if event.AccountID != "" {
		return event.AccountID
	}
	return event.Email
}

// shardIndex maps a shard key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuthEvent) {
	depth := metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			depth.Set(float64(len(ch)))
			if err := d.audits.Insert(ctx, &event); err != nil {
				d.log.Warn().Err(err).
					Str("action", string(event.Action)).
					Int("worker_id", id).
					Msg("audit insert failed")
				continue
			}
			metrics.AuditEventsTotal.WithLabelValues(string(event.Action)).Inc()
		}
	}
}
