package popover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePopover struct {
	visible   bool
	dismissed int
	onDismiss func()
}

func (f *fakePopover) IsVisible() bool { return f.visible }

func (f *fakePopover) Dismiss() {
	f.dismissed++
	f.visible = false
	if f.onDismiss != nil {
		f.onDismiss()
	}
}

func TestSetActiveDismissesPrevious(t *testing.T) {
	tracker := NewTracker()
	a := &fakePopover{visible: true}
	b := &fakePopover{visible: true}

	idA := tracker.SetActive(a)
	idB := tracker.SetActive(b)

	assert.Equal(t, ID(1), idA)
	assert.Equal(t, ID(2), idB)
	assert.Equal(t, 1, a.dismissed)
	assert.Zero(t, b.dismissed)
	assert.True(t, tracker.HasActive())
}

func TestSetActiveSkipsDismissWhenAlreadyHidden(t *testing.T) {
	tracker := NewTracker()
	a := &fakePopover{visible: false}
	b := &fakePopover{visible: true}

	tracker.SetActive(a)
	tracker.SetActive(b)

	assert.Zero(t, a.dismissed)
}

func TestDismissHandlerReentrancy(t *testing.T) {
	tracker := NewTracker()
	a := &fakePopover{visible: true}
	var idA ID
	// A widget's closed signal typically calls ClearIfActive; when the
	// close came from displacement this must not clear the new popover.
	a.onDismiss = func() { tracker.ClearIfActive(idA) }
	idA = tracker.SetActive(a)

	b := &fakePopover{visible: true}
	tracker.SetActive(b)

	assert.Equal(t, 1, a.dismissed)
	assert.True(t, tracker.HasActive(), "displaced popover's handler must not evict the new one")
}

func TestDismissHandlerCannotEvictIncoming(t *testing.T) {
	tracker := NewTracker()
	a := &fakePopover{visible: true}
	// A surface that closes anything still open when it hides.
	a.onDismiss = func() { tracker.DismissActive() }
	tracker.SetActive(a)

	b := &fakePopover{visible: true}
	tracker.SetActive(b)

	assert.Equal(t, 1, a.dismissed)
	assert.Zero(t, b.dismissed, "the old popover's close handler ran before b was stored")
	assert.True(t, tracker.HasActive())
}

func TestClearIfActiveMatchesIDOnly(t *testing.T) {
	tracker := NewTracker()
	a := &fakePopover{visible: true}
	b := &fakePopover{visible: true}

	idA := tracker.SetActive(a)
	idB := tracker.SetActive(b)

	tracker.ClearIfActive(idA)
	assert.True(t, tracker.HasActive(), "stale id is a no-op")

	tracker.ClearIfActive(idB)
	assert.False(t, tracker.HasActive())
}

func TestDismissActive(t *testing.T) {
	tracker := NewTracker()
	a := &fakePopover{visible: true}
	tracker.SetActive(a)

	tracker.DismissActive()

	assert.Equal(t, 1, a.dismissed)
	assert.False(t, tracker.HasActive())

	// Idempotent when nothing is open.
	assert.NotPanics(t, func() { tracker.DismissActive() })
}

func TestIDsAreNeverReused(t *testing.T) {
	tracker := NewTracker()
	seen := map[ID]bool{}
	for i := 0; i < 5; i++ {
		id := tracker.SetActive(&fakePopover{visible: true})
		require.False(t, seen[id])
		seen[id] = true
		tracker.DismissActive()
	}
}

func TestGlobalReturnsSameTracker(t *testing.T) {
	assert.Same(t, Global(), Global())
}
