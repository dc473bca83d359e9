package alert

import (
	"errors"
	"testing"
)

func TestOpen_ReplacesPreviousRequest(t *testing.T) {
	t.Parallel()

	b := New(nil)
	var firstRan, secondRan bool
	t1 := b.Open("First", "one", func() error { firstRan = true; return nil })
	t2 := b.Open("Second", "two", func() error { secondRan = true; return nil })
	if t1 == t2 {
		t.Fatalf("expected distinct tickets")
	}

	cur := b.Current()
	if !cur.Open || cur.Title != "Second" || cur.Message != "two" || cur.Ticket != t2 {
		t.Fatalf("expected second request active, got %#v", cur)
	}

	if err := b.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if firstRan {
		t.Fatalf("replaced callback must not run")
	}
	if !secondRan {
		t.Fatalf("expected second callback to run")
	}
	if b.Current().Open {
		t.Fatalf("expected slot cleared after confirm")
	}
}

func TestConfirm_AlwaysClearsSlot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cb      Callback
		wantErr bool
	}{
		{name: "nil callback", cb: nil},
		{name: "ok callback", cb: func() error { return nil }},
		{name: "failing callback", cb: func() error { return errors.New("boom") }, wantErr: true},
		{name: "panicking callback", cb: func() error { panic("kaboom") }, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := New(nil)
			b.Open("Title", "Message", tt.cb)
			err := b.Confirm()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Confirm err=%v wantErr=%v", err, tt.wantErr)
			}
			if err != nil {
				var cbErr *CallbackError
				if !errors.As(err, &cbErr) {
					t.Fatalf("expected *CallbackError, got %T", err)
				}
			}
			if b.Current().Open {
				t.Fatalf("slot must be released")
			}
		})
	}
}

func TestClose_DoesNotRunCallback(t *testing.T) {
	t.Parallel()

	b := New(nil)
	ran := false
	b.Open("T", "M", func() error { ran = true; return nil })
	b.Close()
	if ran {
		t.Fatalf("close must not invoke callback")
	}
	cur := b.Current()
	if cur.Open || cur.Title != "" || cur.Message != "" {
		t.Fatalf("expected cleared slot, got %#v", cur)
	}
	// Confirm on an empty slot is a no-op.
	if err := b.Confirm(); err != nil {
		t.Fatalf("Confirm on empty slot: %v", err)
	}
}

func TestResolve_StaleTicketIgnored(t *testing.T) {
	t.Parallel()

	b := New(nil)
	var ran []string
	old := b.Open("Old", "", func() error { ran = append(ran, "old"); return nil })
	cur := b.Open("New", "", func() error { ran = append(ran, "new"); return nil })

	ok, err := b.Resolve(old, DecisionConfirm)
	if ok || err != nil {
		t.Fatalf("stale resolve: ok=%v err=%v", ok, err)
	}
	if !b.Current().Open {
		t.Fatalf("stale decision must not close the current request")
	}

	ok, err = b.Resolve(cur, DecisionConfirm)
	if !ok || err != nil {
		t.Fatalf("resolve current: ok=%v err=%v", ok, err)
	}
	if len(ran) != 1 || ran[0] != "new" {
		t.Fatalf("unexpected callbacks: %v", ran)
	}
}

func TestResolve_Dismiss(t *testing.T) {
	t.Parallel()

	b := New(nil)
	ran := false
	tk := b.Open("T", "M", func() error { ran = true; return nil })
	ok, err := b.Resolve(tk, DecisionDismiss)
	if !ok || err != nil {
		t.Fatalf("dismiss: ok=%v err=%v", ok, err)
	}
	if ran || b.Current().Open {
		t.Fatalf("dismiss must clear without running callback")
	}
}

func TestConfirm_CallbackMayOpenFollowUp(t *testing.T) {
	t.Parallel()

	b := New(nil)
	b.Open("Step 1", "", func() error {
		b.Open("Step 2", "done", nil)
		return nil
	})
	if err := b.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	cur := b.Current()
	if !cur.Open || cur.Title != "Step 2" {
		t.Fatalf("expected follow-up request to stay open, got %#v", cur)
	}
}

func TestSubscribe_ReceivesLatestState(t *testing.T) {
	t.Parallel()

	b := New(nil)
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Open("A", "", nil)
	b.Open("B", "", nil)
	got := <-ch
	if got.Title != "B" || !got.Open {
		t.Fatalf("expected latest state B, got %#v", got)
	}

	b.Close()
	got = <-ch
	if got.Open {
		t.Fatalf("expected closed state, got %#v", got)
	}

	b.Teardown()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after teardown")
	}
	if tk := b.Open("late", "", nil); tk != 0 {
		t.Fatalf("open after teardown should be ignored")
	}
}
