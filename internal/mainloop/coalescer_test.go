package mainloop

import "testing"

func TestCoalescerMergesBurstIntoSingleIdle(t *testing.T) {
	queue := make([]func(), 0, 8)
	c := NewCoalescer[string](func(fn func()) { queue = append(queue, fn) })

	value := 0
	for i := 1; i <= 5; i++ {
		v := i
		c.Post("workspace-refresh", func() { value = v })
	}

	if len(queue) != 1 {
		t.Fatalf("expected 1 scheduled callback, got %d", len(queue))
	}
	queue[0]()

	if value != 5 {
		t.Fatalf("expected latest callback to run, got %d", value)
	}
}

func TestCoalescerKeysAreIndependent(t *testing.T) {
	type kind int
	const (
		kindA kind = iota
		kindB
	)

	queue := make([]func(), 0, 4)
	c := NewCoalescer[kind](func(fn func()) { queue = append(queue, fn) })

	ranA, ranB := false, false
	c.Post(kindA, func() { ranA = true })
	c.Post(kindB, func() { ranB = true })

	if len(queue) != 2 {
		t.Fatalf("expected one dispatch per key, got %d", len(queue))
	}
	for _, fn := range queue {
		fn()
	}
	if !ranA || !ranB {
		t.Fatalf("expected both keys to run, got a=%v b=%v", ranA, ranB)
	}
}

func TestCoalescerDropsWorkAfterDestroy(t *testing.T) {
	queue := make([]func(), 0, 4)
	c := NewCoalescer[string](func(fn func()) { queue = append(queue, fn) })

	ran := false
	c.Post("osd-hide", func() { ran = true })
	c.Destroy()

	if len(queue) != 1 {
		t.Fatalf("expected one queued callback before destroy, got %d", len(queue))
	}
	queue[0]()

	if ran {
		t.Fatalf("expected queued work to be dropped after destroy")
	}

	c.Post("osd-hide", func() { ran = true })
	if len(queue) != 1 {
		t.Fatalf("expected no new callback after destroy, got %d", len(queue))
	}
}

func TestNewCoalescerPanicsOnNilPost(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected NewCoalescer to panic when post is nil")
		}
	}()

	_ = NewCoalescer[string](nil)
}

func TestSetPosterRejectsNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected SetPoster to panic on nil")
		}
	}()

	SetPoster(nil)
}

func TestPostUsesInstalledPoster(t *testing.T) {
	ran := false
	SetPoster(func(fn func()) { fn() })
	defer SetPoster(GLibPost)

	Post(func() { ran = true })
	if !ran {
		t.Fatalf("expected posted function to run synchronously")
	}
}
