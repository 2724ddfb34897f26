package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testMsg struct{ n int }

func (m *testMsg) NewMessage() Message { return &testMsg{} }

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(errors.New("a"))
	require.EqualError(t, errs.Aggregate(), "a")
	errs.Add(errors.New("b"), nil)
	require.EqualError(t, errs.Aggregate(), "multiple errors:\n  a\n  b")
}

func TestLoopMessagesByPriority(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Hour
	var order []string
	got := make(chan int, 1)
	loop.AddController(PrLvSafety, ControlFunc(func(cc ControlContext) error {
		order = append(order, "safety")
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			t.Errorf("message left after being taken: %v", mc.CurrentMessage())
		}))
		got <- len(order)
		return nil
	}))
	loop.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		if cc.PriorityLevel() != PrLvControl {
			t.Errorf("priority level %d", cc.PriorityLevel())
		}
		order = append(order, "control")
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			if _, ok := mc.CurrentMessage().(*testMsg); ok {
				mc.MessageTaken()
			}
		}))
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	loop.PostMessage(&testMsg{n: 1})
	loop.TriggerNext()
	select {
	case n := <-got:
		require.Equal(t, 2, n)
		require.Equal(t, []string{"control", "safety"}, order)
	case <-time.After(time.Second):
		t.Fatal("iteration not triggered")
	}
}

func TestRunnerStopsOnError(t *testing.T) {
	failure := errors.New("failed")
	runner := NewRunner().Go(
		NamedRun("failing", RunFunc(func(ctx context.Context) error { return failure })),
		NamedRun("waiting", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
	)
	require.EqualError(t, runner.Wait(), "failed")
}
