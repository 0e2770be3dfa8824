package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"maestro/internal/domain"
	"maestro/internal/logging"
	"maestro/internal/ports"
)

// DefaultSubscriberBuffer is used when no buffer size is configured.
const DefaultSubscriberBuffer = 256

// Pipeline fans session output into durable storage and live
// subscribers. Every record for a session passes through a single
// ingestion lane, so producers on different OS streams still get
// contiguous sequence numbers starting at zero.
type Pipeline struct {
	appender ports.OutputAppender
	reader   ports.OutputReader
	bufSize  int

	mu    sync.Mutex
	lanes map[string]*lane
}

// lane serializes ingestion for one session and tracks its live
// subscribers.
type lane struct {
	mu      sync.Mutex
	nextSeq int64
	loaded  bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan domain.OutputRecord
}

// Store is the slice of the output store the pipeline needs.
type Store interface {
	ports.OutputAppender
	ports.OutputReader
}

// NewPipeline creates a pipeline over the given output store.
func NewPipeline(store Store, subscriberBuffer int) *Pipeline {
	if subscriberBuffer <= 0 {
		subscriberBuffer = DefaultSubscriberBuffer
	}
	return &Pipeline{
		appender: store,
		reader:   store,
		bufSize:  subscriberBuffer,
		lanes:    make(map[string]*lane),
	}
}

func (p *Pipeline) lane(sessionID string) *lane {
	p.mu.Lock()
	defer p.mu.Unlock()

	ln, ok := p.lanes[sessionID]
	if !ok {
		ln = &lane{subs: make(map[int]chan domain.OutputRecord)}
		p.lanes[sessionID] = ln
	}
	return ln
}

// Ingest persists one output chunk for a session and publishes it to
// live subscribers. The record is durable before any subscriber sees
// it. Returns the sequence number assigned to the record.
func (p *Pipeline) Ingest(ctx context.Context, sessionID string, kind domain.OutputKind, payload []byte) (int64, error) {
	ln := p.lane(sessionID)
	ln.mu.Lock()
	defer ln.mu.Unlock()

	if !ln.loaded {
		next, err := p.reader.NextSeq(ctx, sessionID)
		if err != nil {
			return 0, err
		}
		ln.nextSeq = next
		ln.loaded = true
	}

	record := domain.OutputRecord{
		SessionID: sessionID,
		Seq:       ln.nextSeq,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	if err := p.appender.AppendNext(ctx, record); err != nil {
		// Another writer advanced the log out from under us.
		// Resynchronize the lane before surfacing the fault.
		var fault *domain.SequencingFault
		if errors.As(err, &fault) {
			ln.nextSeq = fault.Want
		}
		return 0, err
	}
	ln.nextSeq++

	ln.broadcast(record)
	return record.Seq, nil
}

// broadcast delivers a record to every live subscriber. Slow
// subscribers get records dropped rather than stalling ingestion; the
// durable log stays complete either way.
func (ln *lane) broadcast(record domain.OutputRecord) {
	ln.subMu.Lock()
	defer ln.subMu.Unlock()

	for id, ch := range ln.subs {
		select {
		case ch <- record:
		default:
			logging.Logger.Warn("dropping live output record for slow subscriber",
				"session_id", record.SessionID,
				"seq", record.Seq,
				"subscriber", id)
		}
	}
}

// SubscribeLive returns a channel of records appended after the call,
// plus a cancel function. Cancel is idempotent and closes the channel.
func (p *Pipeline) SubscribeLive(sessionID string) (<-chan domain.OutputRecord, func()) {
	ln := p.lane(sessionID)

	ln.subMu.Lock()
	id := ln.nextID
	ln.nextID++
	ch := make(chan domain.OutputRecord, p.bufSize)
	ln.subs[id] = ch
	ln.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ln.subMu.Lock()
			_, present := ln.subs[id]
			delete(ln.subs, id)
			ln.subMu.Unlock()
			// Drop may have closed the channel already.
			if present {
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Replay returns the full durable record sequence for a session in
// order, independent of any live process state.
func (p *Pipeline) Replay(ctx context.Context, sessionID string) ([]domain.OutputRecord, error) {
	return p.reader.Replay(ctx, sessionID)
}

// ReplayFrom returns records starting at fromSeq.
func (p *Pipeline) ReplayFrom(ctx context.Context, sessionID string, fromSeq int64) ([]domain.OutputRecord, error) {
	return p.reader.Range(ctx, sessionID, fromSeq, -1)
}

// NextSeq reports the sequence number the next ingested record for the
// session will receive.
func (p *Pipeline) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	ln := p.lane(sessionID)
	ln.mu.Lock()
	defer ln.mu.Unlock()

	if ln.loaded {
		return ln.nextSeq, nil
	}
	return p.reader.NextSeq(ctx, sessionID)
}

// Drop discards the in-memory lane for a session and closes its live
// subscribers. Called when a session is deleted; durable records are
// the store's concern.
func (p *Pipeline) Drop(sessionID string) {
	p.mu.Lock()
	ln, ok := p.lanes[sessionID]
	if ok {
		delete(p.lanes, sessionID)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	ln.subMu.Lock()
	defer ln.subMu.Unlock()
	for id, ch := range ln.subs {
		delete(ln.subs, id)
		close(ch)
	}
}
