package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStackFlowDispatchOrderAndCounters(t *testing.T) {
	sf := NewStackFlow("test", 16, nil)
	sf.Start()
	defer sf.Stop()

	var mu sync.Mutex
	var order []string

	h1 := HandlerFunc{FuncName: "h1", Tags: []Tag{TagCustom}, Fn: func(Event) bool {
		mu.Lock()
		order = append(order, "h1")
		mu.Unlock()
		return true
	}}
	h2 := HandlerFunc{FuncName: "h2", Tags: []Tag{TagCustom}, Fn: func(Event) bool {
		mu.Lock()
		order = append(order, "h2")
		mu.Unlock()
		return true
	}}
	sf.RegisterHandler(h1)
	sf.RegisterHandler(h2)

	sf.Publish(NewEvent(TagCustom, "test", ""))

	require.Eventually(t, func() bool {
		return sf.EventsProcessed() == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"h1", "h2"}, order)
}

func TestStackFlowHandlerFailureIncrementsErrors(t *testing.T) {
	sf := NewStackFlow("test", 16, nil)
	sf.Start()
	defer sf.Stop()

	sf.RegisterHandler(HandlerFunc{FuncName: "always-fails", Tags: []Tag{TagCustom}, Fn: func(Event) bool { return false }})
	sf.Publish(NewEvent(TagCustom, "test", ""))

	require.Eventually(t, func() bool { return sf.Errors() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStackFlowTriggersWorkflow(t *testing.T) {
	sf := NewStackFlow("test", 16, nil)
	sf.Start()
	defer sf.Stop()

	root := NewWorkflowStep("root", KindAction)
	executed := make(chan struct{}, 1)
	root.Act = func(Event) bool {
		executed <- struct{}{}
		return true
	}
	sf.RegisterWorkflow("root", root)

	sf.Publish(NewEvent(TagCustom, "test", ""))

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("workflow did not execute")
	}
	require.Equal(t, StatusCompleted, root.Status())
}

func TestStackFlowStopDropsQueuedEvents(t *testing.T) {
	sf := NewStackFlow("test", 16, nil)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	sf.RegisterHandler(HandlerFunc{FuncName: "blocker", Tags: []Tag{TagCustom}, Fn: func(Event) bool {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return true
	}})
	sf.Start()
	for i := 0; i < 3; i++ {
		sf.Publish(NewEvent(TagCustom, "test", ""))
	}
	<-entered // the worker is inside the first event; the other two stay queued

	stopped := make(chan struct{})
	go func() {
		sf.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool {
		sf.mu.Lock()
		defer sf.mu.Unlock()
		return sf.stopRequested
	}, time.Second, time.Millisecond)
	close(release)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	require.EqualValues(t, 1, sf.EventsProcessed())
}

func TestStackFlowTryPublishRejectsWhenFull(t *testing.T) {
	sf := NewStackFlow("test", 1, nil)
	// Worker not started: the FIFO never drains, so the second publish
	// must be rejected rather than block the test.
	require.NoError(t, sf.TryPublish(NewEvent(TagCustom, "test", "")))
	err := sf.TryPublish(NewEvent(TagCustom, "test", ""))
	require.ErrorIs(t, err, ErrQueueFull)
}
