package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ N int }
type pong struct{ N int }

func TestOn_DispatchesByType(t *testing.T) {
	b := New()
	var pings, pongs []int
	On(b, func(_ context.Context, e ping) { pings = append(pings, e.N) })
	On(b, func(_ context.Context, e pong) { pongs = append(pongs, e.N) })

	Emit(context.Background(), b, ping{1})
	Emit(context.Background(), b, pong{2})
	Emit(context.Background(), b, ping{3})

	assert.Equal(t, []int{1, 3}, pings)
	assert.Equal(t, []int{2}, pongs)
}

func TestUnsubscribe_RemovesOnlyThatHandler(t *testing.T) {
	b := New()
	var got []string
	unA := On(b, func(context.Context, ping) { got = append(got, "a") })
	On(b, func(context.Context, ping) { got = append(got, "b") })

	unA()
	unA()
	Emit(context.Background(), b, ping{})

	assert.Equal(t, []string{"b"}, got)
}

func TestGlobal(t *testing.T) {
	t.Cleanup(func() { Use(nil) })

	// without a bus, publishing and subscribing are no-ops
	Use(nil)
	Subscribe(func(context.Context, ping) { t.Fatal("unexpected delivery") })()
	Publish(context.Background(), ping{})

	Use(New())
	var n int
	un := Subscribe(func(_ context.Context, e ping) { n += e.N })
	Publish(context.Background(), ping{5})
	un()
	Publish(context.Background(), ping{5})
	assert.Equal(t, 5, n)

	var nilBus *Bus
	Emit(context.Background(), nilBus, ping{})
}
