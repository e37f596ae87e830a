package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "classlog/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Close() { f.closed = true }

func TestPublisherEmit(t *testing.T) {
	t.Run("produces keyed json record", func(t *testing.T) {
		fp := &fakeProducer{}
		p := NewWithProducer(fp, "classlog.audit")

		err := p.Emit(context.Background(), audit.Event{
			Category:   audit.CategoryVerification,
			Action:     audit.ActionVerificationCompleted,
			ClassLogID: "cl-1",
			Decision:   "high",
		})
		require.NoError(t, err)
		require.Len(t, fp.records, 1)

		rec := fp.records[0]
		assert.Equal(t, "classlog.audit", rec.Topic)
		assert.Equal(t, []byte("cl-1"), rec.Key)

		var decoded audit.Event
		require.NoError(t, json.Unmarshal(rec.Value, &decoded))
		assert.Equal(t, audit.ActionVerificationCompleted, decoded.Action)
		assert.Equal(t, "high", decoded.Decision)
	})

	t.Run("surfaces produce errors", func(t *testing.T) {
		fp := &fakeProducer{err: errors.New("broker down")}
		p := NewWithProducer(fp, "classlog.audit")

		err := p.Emit(context.Background(), audit.Event{Action: audit.ActionRateLimitExceeded})
		assert.ErrorContains(t, err, "broker down")
	})

	t.Run("close closes producer", func(t *testing.T) {
		fp := &fakeProducer{}
		NewWithProducer(fp, "t").Close()
		assert.True(t, fp.closed)
	})
}

func TestNewValidatesInput(t *testing.T) {
	_, err := New(nil, "topic")
	assert.Error(t, err)

	_, err = New([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
