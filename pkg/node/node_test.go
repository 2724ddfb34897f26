package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/hal/sim"
	"github.com/robotalks/marlinspike/pkg/interlock"
)

func runNode(t *testing.T, n *Node) func() {
	loop := fx.NewLoop()
	loop.Interval = 5 * time.Millisecond
	loop.Add(n)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func do(t *testing.T, n *Node, line string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := n.Do(ctx, line)
	require.NoError(t, err)
	return resp
}

func TestNotRunning(t *testing.T) {
	n := New(sim.NewPlatform(), nil)
	_, err := n.Do(context.Background(), "M115")
	require.Equal(t, ErrNotRunning, err)
}

func TestDo(t *testing.T) {
	p := sim.NewPlatform()
	n := New(p, nil)
	stop := runNode(t, n)
	defer stop()

	require.Equal(t, []string{"<M10/>"}, do(t, n, "M10 Z1 T1"))
	require.Equal(t, []string{"<M3/>"}, do(t, n, "M3 Z1 C1 P5 D6"))
	require.Equal(t, []string{"<G5/>"}, do(t, n, "G5 Z1 C1 P500"))
	require.Equal(t, 500, p.Pin(5).Duty)
	require.Equal(t, []string{"<Unknown code M77/>"}, do(t, n, "M77"))
	require.Nil(t, do(t, n, ""))
}

func TestBoot(t *testing.T) {
	p := sim.NewPlatform()
	n := New(p, nil)
	n.Boot([]string{"M10 Z2 T1", "M3 Z2 C1 P7 D8"})
	stop := runNode(t, n)
	defer stop()
	require.Equal(t, []string{"<G5/>"}, do(t, n, "G5 Z2 C1 P300"))
	require.Equal(t, 300, p.Pin(7).Duty)
	require.True(t, p.Pin(8).High)
}

func TestTimedSweep(t *testing.T) {
	p := sim.NewPlatform()
	n := New(p, nil)
	faults := make(chan interlock.Fault, 1)
	n.AddSink(func(f interlock.Fault) { faults <- f })
	removed := n.AddSink(func(f interlock.Fault) { t.Errorf("removed sink called: %v", f) })
	removed()
	stop := runNode(t, n)
	defer stop()

	do(t, n, "M10 Z1 T1")
	do(t, n, "M3 Z1 C1 P5 D6")
	require.Equal(t, []string{"<M33/>"}, do(t, n, "M33 Z1 C1 P9 D30 E0"))
	require.Equal(t, []string{"<G5/>"}, do(t, n, "G5 Z1 C1 P-400"))

	// no command follows, the loop tick must trip the interlock.
	p.SetRange(9, 10)
	select {
	case f := <-faults:
		require.Equal(t, interlock.Fault{Slot: 1, Status: 8, Causes: []string{"8 Ultrasonic proximity"}}, f)
	case <-time.After(time.Second):
		t.Fatal("fault not reported")
	}
	require.True(t, n.Latch.Stopped())
	require.Equal(t, 0, p.Pin(5).Duty)
	require.Nil(t, do(t, n, "G5 Z1 C1 P-400"))
	require.Equal(t, []string{"<M999/>"}, do(t, n, "M999"))
	require.False(t, n.Latch.Stopped())
}

func TestDoCanceled(t *testing.T) {
	n := New(sim.NewPlatform(), nil)
	n.AddToLoop(fx.NewLoop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := n.Do(ctx, "M115")
	require.Equal(t, context.Canceled, err)
}
