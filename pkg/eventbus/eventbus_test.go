package eventbus

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/crm-exchange/pkg/logging"
)

type args struct {
	data any
}

func bufferedLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return log, buf
}

func TestPublisher_PublishWithoutMatch(t *testing.T) {
	type other struct{}
	log, buf := bufferedLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *args) {
		t.Error("should not be called")
	})
	publisher.Publish(&other{})

	assert.Contains(t, buf.String(), "eventbus.Publish: no matching subscribers")
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	var data any
	publisher.Subscribe(func(e *args) {
		data = e.data
	})
	publisher.Publish(&args{data: "test"})
	assert.Equal(t, "test", data)
	assert.Equal(t, 1, publisher.SubscribersCount())
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)
	calls := 0
	handler := func(e *args) { calls++ }
	publisher.Subscribe(handler)
	publisher.Publish(&args{})
	publisher.Unsubscribe(handler)
	publisher.Publish(&args{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, publisher.SubscribersCount())
}

func TestMatchSignature(t *testing.T) {
	type args2 struct{}
	assert.True(t, MatchSignature(func(e *args) {}, []any{&args{}}))
	assert.False(t, MatchSignature(func(e *args) {}, []any{&args2{}}))
	assert.False(t, MatchSignature(func(e *args) {}, []any{}))
	assert.False(t, MatchSignature(func(e *args) {}, []any{&args{}, &args{}}))
	assert.True(t, MatchSignature(func(ctx context.Context) {}, []any{context.Background()}))
	assert.True(t, MatchSignature(func(e *args) {}, []any{nil}))
	assert.False(t, MatchSignature("not a func", []any{}))
}

func TestPublisher_PanicRecovery(t *testing.T) {
	t.Run("panic is logged and other handlers run", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.WarnLevel)
		publisher := NewEventPublisher(log)
		called := false
		publisher.Subscribe(func(e *args) { panic("intentional panic for testing") })
		publisher.Subscribe(func(e *args) { called = true })

		publisher.Publish(&args{data: "important-data"})

		assert.True(t, called)
		out := buf.String()
		assert.Contains(t, out, "panicked")
		assert.Contains(t, out, "intentional panic for testing")
		assert.NotContains(t, out, "no matching subscribers")
	})

	t.Run("all handlers panicking counts as unhandled", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.WarnLevel)
		publisher := NewEventPublisher(log)
		publisher.Subscribe(func(e *args) { panic("always panics") })

		publisher.Publish(&args{data: "test"})

		assert.Contains(t, buf.String(), "no matching subscribers")
	})
}

func TestPublisher_PublishE(t *testing.T) {
	t.Run("returns ErrNoSubscribers when none match", func(t *testing.T) {
		err := NewEventPublisher(logrus.New()).PublishE(&args{data: "x"})
		assert.True(t, errors.Is(err, ErrNoSubscribers))
	})

	t.Run("returns joined errors from multiple handlers", func(t *testing.T) {
		publisher := NewEventPublisher(logrus.New())
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		publisher.Subscribe(func(e *args) error { return err1 })
		publisher.Subscribe(func(e *args) error { return err2 })

		err := publisher.PublishE(&args{data: "x"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, err1))
		assert.True(t, errors.Is(err, err2))
	})

	t.Run("panic is surfaced as error", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		called := false
		publisher.Subscribe(func(e *args) error { panic("boom") })
		publisher.Subscribe(func(e *args) error { called = true; return nil })

		require.Error(t, publisher.PublishE(&args{data: "x"}))
		assert.True(t, called)
	})

	t.Run("invalid handler return", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		publisher.Subscribe(func(e *args) int { return 1 })
		assert.True(t, errors.Is(publisher.PublishE(&args{data: "x"}), ErrInvalidHandlerReturn))
	})
}

func TestPublisher_ConcurrentPublish(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var mu sync.Mutex
	count := 0
	publisher.Subscribe(func(e *args) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Publish(&args{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, count)
}
