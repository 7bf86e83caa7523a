package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func trigger() Event { return NewEvent(TagCustom, "test", "") }

func TestConditionSkipsWhenFalse(t *testing.T) {
	step := NewWorkflowStep("cond", KindCondition)
	step.Condition = func(Event) bool { return false }
	ok := step.Execute(trigger())
	require.False(t, ok)
	require.Equal(t, StatusSkipped, step.Status())
}

func TestSequentialStopsAtFirstFailure(t *testing.T) {
	var ran []string
	mk := func(name string, ok bool) *WorkflowStep {
		s := NewWorkflowStep(name, KindAction)
		s.Act = func(Event) bool { ran = append(ran, name); return ok }
		return s
	}
	root := NewWorkflowStep("root", KindSequential)
	root.Children = []*WorkflowStep{mk("a", true), mk("b", false), mk("c", true)}

	ok := root.Execute(trigger())
	require.False(t, ok)
	require.Equal(t, StatusFailed, root.Status())
	require.Equal(t, []string{"a", "b"}, ran)
}

func TestParallelRunsAllChildrenEvenOnFailure(t *testing.T) {
	mk := func(name string, ok bool) *WorkflowStep {
		s := NewWorkflowStep(name, KindAction)
		s.Act = func(Event) bool { return ok }
		return s
	}
	root := NewWorkflowStep("root", KindParallel)
	a, b, c := mk("a", true), mk("b", false), mk("c", true)
	root.Children = []*WorkflowStep{a, b, c}

	ok := root.Execute(trigger())
	require.False(t, ok)
	require.Equal(t, StatusFailed, root.Status())
	require.Equal(t, StatusCompleted, a.Status())
	require.Equal(t, StatusFailed, b.Status())
	require.Equal(t, StatusCompleted, c.Status())
}

func TestTimeoutFailsStepAndIgnoresLateCompletion(t *testing.T) {
	step := NewWorkflowStep("slow", KindAction)
	step.Timeout = 10 * time.Millisecond
	step.Act = func(Event) bool {
		time.Sleep(50 * time.Millisecond)
		return true
	}

	ok := step.Execute(trigger())
	require.False(t, ok)
	require.Equal(t, StatusFailed, step.Status())

	time.Sleep(75 * time.Millisecond) // let the detached Act finish
	require.Equal(t, StatusFailed, step.Status(), "late completion must not overwrite the timeout verdict")
}

func TestResetWalksPostOrder(t *testing.T) {
	child := NewWorkflowStep("child", KindAction)
	child.Act = func(Event) bool { return true }
	root := NewWorkflowStep("root", KindSequential)
	root.Children = []*WorkflowStep{child}

	root.Execute(trigger())
	require.Equal(t, StatusCompleted, root.Status())
	require.Equal(t, StatusCompleted, child.Status())

	root.Reset()
	require.Equal(t, StatusPending, root.Status())
	require.Equal(t, StatusPending, child.Status())
}
