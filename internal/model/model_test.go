package model

import (
	"errors"
	"testing"
)

func TestLifecycleApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    Lifecycle
		op      Transition
		want    Lifecycle
		wantErr bool
	}{
		{LifecycleActive, TransitionTrash, LifecycleTrashed, false},
		{LifecycleActive, TransitionArchive, LifecycleArchived, false},
		{LifecycleTrashed, TransitionRestore, LifecycleActive, false},
		{LifecycleArchived, TransitionRestore, LifecycleActive, false},
		{LifecycleTrashed, TransitionPurge, LifecyclePurged, false},
		{LifecycleArchived, TransitionPurge, LifecyclePurged, false},
		{LifecycleActive, TransitionPurge, LifecycleActive, true},
		{LifecycleActive, TransitionRestore, LifecycleActive, true},
		{LifecycleTrashed, TransitionArchive, LifecycleTrashed, true},
		{LifecyclePurged, TransitionRestore, LifecyclePurged, true},
		{LifecyclePurged, TransitionPurge, LifecyclePurged, true},
	}
	for _, tt := range tests {
		got, err := tt.from.Apply(tt.op)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s.Apply(%s) err=%v wantErr=%v", tt.from, tt.op, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("%s.Apply(%s)=%s want %s", tt.from, tt.op, got, tt.want)
		}
		if err != nil {
			var ite InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Fatalf("expected InvalidTransitionError, got %T", err)
			}
		}
	}
}

func TestNewTrashRow_Fallbacks(t *testing.T) {
	t.Parallel()

	row := NewTrashRow(Survey{ID: "s1", Title: "T", CreatedAt: "2024-03-15T00:00:00Z"}, "")
	if row.WorkspaceName != UnknownWorkspaceName {
		t.Fatalf("workspace name fallback: got %q", row.WorkspaceName)
	}
	if row.ArchivedAt != "2024-03-15T00:00:00Z" {
		t.Fatalf("archived_at should fall back to created_at, got %q", row.ArchivedAt)
	}
	if row.ScaleMax != DefaultScaleMax {
		t.Fatalf("scale_max default: got %d", row.ScaleMax)
	}

	row = NewTrashRow(Survey{ID: "s2", WorkspaceName: "From API", UpdatedAt: "u", CreatedAt: "c", ScaleMax: 7}, "Lookup")
	if row.WorkspaceName != "Lookup" || row.ArchivedAt != "u" || row.ScaleMax != 7 {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestWorkspaceTrashed(t *testing.T) {
	t.Parallel()

	no := false
	yes := true
	if (Workspace{}).Trashed() {
		t.Fatalf("zero workspace should be active")
	}
	if !(Workspace{IsActive: &no}).Trashed() {
		t.Fatalf("is_active=false should be trashed")
	}
	if (Workspace{IsActive: &yes}).Trashed() {
		t.Fatalf("is_active=true should not be trashed")
	}
	if !(Workspace{Status: "deleted"}).Trashed() {
		t.Fatalf("status=deleted should be trashed")
	}
}

func TestPurgeDeadline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "2024-03-01T10:00:00Z", want: "2024-03-31", ok: true},
		{in: "2024-03-01T10:00:00", want: "2024-03-31", ok: true},
		{in: "2024-03-01", want: "2024-03-31", ok: true},
		{in: "", ok: false},
		{in: "yesterday", ok: false},
	}
	for _, tt := range tests {
		got, ok := PurgeDeadline(tt.in)
		if ok != tt.ok {
			t.Fatalf("PurgeDeadline(%q) ok=%v want %v", tt.in, ok, tt.ok)
		}
		if ok && got.Format("2006-01-02") != tt.want {
			t.Fatalf("PurgeDeadline(%q) = %s want %s", tt.in, got.Format("2006-01-02"), tt.want)
		}
	}
}
