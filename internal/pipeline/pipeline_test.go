package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"maestro/internal/domain"
)

// memStore is an in-memory Store with the same insert-if-next contract
// as the SQLite adapter.
type memStore struct {
	mu      sync.Mutex
	records map[string][]domain.OutputRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string][]domain.OutputRecord)}
}

func (s *memStore) AppendNext(_ context.Context, record domain.OutputRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := int64(len(s.records[record.SessionID]))
	if record.Seq != next {
		return &domain.SequencingFault{SessionID: record.SessionID, Want: next, Got: record.Seq}
	}
	s.records[record.SessionID] = append(s.records[record.SessionID], record)
	return nil
}

func (s *memStore) Replay(ctx context.Context, sessionID string) ([]domain.OutputRecord, error) {
	return s.Range(ctx, sessionID, 0, -1)
}

func (s *memStore) Range(_ context.Context, sessionID string, fromSeq, toSeq int64) ([]domain.OutputRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.OutputRecord
	for _, r := range s.records[sessionID] {
		if r.Seq >= fromSeq && (toSeq < 0 || r.Seq < toSeq) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) NextSeq(_ context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records[sessionID])), nil
}

func TestIngest_AssignsContiguousSequence(t *testing.T) {
	p := NewPipeline(newMemStore(), 8)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seq, err := p.Ingest(ctx, "s1", domain.KindStdout, []byte("chunk"))
		require.NoError(t, err)
		assert.Equal(t, int64(i), seq)
	}
}

func TestIngest_ConcurrentProducersStayGapless(t *testing.T) {
	p := NewPipeline(newMemStore(), 8)
	ctx := context.Background()

	// stdout, stderr and system notices racing on one session
	var g errgroup.Group
	kinds := []domain.OutputKind{domain.KindStdout, domain.KindStderr, domain.KindSystemNotice}
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				if _, err := p.Ingest(ctx, "s1", kind, []byte("x")); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	records, err := p.Replay(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, records, 150)
	for i, rec := range records {
		assert.Equal(t, int64(i), rec.Seq)
	}
}

func TestIngest_ResumesFromStoredSequence(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	// Records persisted by a previous run
	first := NewPipeline(store, 8)
	_, err := first.Ingest(ctx, "s1", domain.KindStdout, []byte("old"))
	require.NoError(t, err)

	// A fresh pipeline over the same store continues the sequence
	second := NewPipeline(store, 8)
	seq, err := second.Ingest(ctx, "s1", domain.KindStdout, []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestSubscribeLive_ReceivesInOrder(t *testing.T) {
	p := NewPipeline(newMemStore(), 8)
	ctx := context.Background()

	ch, cancel := p.SubscribeLive("s1")
	defer cancel()

	payloads := []string{"a", "b", "c"}
	for _, pl := range payloads {
		_, err := p.Ingest(ctx, "s1", domain.KindStdout, []byte(pl))
		require.NoError(t, err)
	}

	for i, want := range payloads {
		rec := <-ch
		assert.Equal(t, int64(i), rec.Seq)
		assert.Equal(t, want, string(rec.Payload))
	}
}

func TestSubscribeLive_SlowSubscriberDoesNotBlockIngest(t *testing.T) {
	p := NewPipeline(newMemStore(), 2)
	ctx := context.Background()

	_, cancel := p.SubscribeLive("s1")
	defer cancel()

	// Nobody drains the channel; ingestion must still complete.
	for i := 0; i < 10; i++ {
		_, err := p.Ingest(ctx, "s1", domain.KindStdout, []byte("x"))
		require.NoError(t, err)
	}

	// The durable log is complete even though live records were dropped.
	records, err := p.Replay(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, records, 10)
}

func TestSubscribeLive_CancelIsIdempotent(t *testing.T) {
	p := NewPipeline(newMemStore(), 8)

	_, cancel := p.SubscribeLive("s1")
	cancel()
	cancel()
}

func TestDrop_ClosesSubscribers(t *testing.T) {
	p := NewPipeline(newMemStore(), 8)

	ch, cancel := p.SubscribeLive("s1")
	p.Drop("s1")

	_, open := <-ch
	assert.False(t, open)

	// cancel after Drop must not panic
	cancel()
}

func TestIngest_SessionsDoNotInterfere(t *testing.T) {
	p := NewPipeline(newMemStore(), 8)
	ctx := context.Background()

	var g errgroup.Group
	for _, id := range []string{"s1", "s2", "s3"} {
		id := id
		g.Go(func() error {
			for i := 0; i < 20; i++ {
				if _, err := p.Ingest(ctx, id, domain.KindStdout, []byte(id)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range []string{"s1", "s2", "s3"} {
		records, err := p.Replay(ctx, id)
		require.NoError(t, err)
		require.Len(t, records, 20)
		for i, rec := range records {
			assert.Equal(t, int64(i), rec.Seq)
			assert.Equal(t, id, string(rec.Payload))
		}
	}
}
