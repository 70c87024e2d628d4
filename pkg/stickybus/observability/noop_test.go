package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}

	t.Run("does not panic with valid args", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordPost(context.Background(), "x", "string", 1)
			m.RecordDelivery(context.Background(), "OnMessage", time.Millisecond, nil)
			m.RecordDeadEvent(context.Background(), "x", "string")
			m.RecordRegistration(context.Background(), "register", nil)
		})
	})

	t.Run("does not panic with errors", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordDelivery(context.Background(), "OnMessage", 0, errors.New("test"))
			m.RecordRegistration(context.Background(), "register", errors.New("test"))
		})
	})
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}

	t.Run("returns context unchanged", func(t *testing.T) {
		type key struct{}
		ctx := context.WithValue(context.Background(), key{}, "v")

		got, span := sm.StartPostSpan(ctx, "x", "string")
		assert.Equal(t, ctx, got)
		assert.NotNil(t, span)
		assert.False(t, span.IsRecording())

		got, span = sm.StartRegisterSpan(ctx, "register", "*app.Chat")
		assert.Equal(t, ctx, got)
		assert.False(t, span.IsRecording())
	})

	t.Run("end and events do not panic", func(t *testing.T) {
		_, span := sm.StartPostSpan(context.Background(), "", "")
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(context.Background(), "evt", attribute.String("k", "v"))
			sm.EndSpanWithError(span, errors.New("x"))
			sm.EndSpanWithError(nil, nil)
		})
	})
}
