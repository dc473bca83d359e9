package model

import "fmt"

// Lifecycle is the soft-delete state of a survey.
type Lifecycle int

const (
	LifecycleActive Lifecycle = iota
	LifecycleTrashed
	LifecycleArchived
	LifecyclePurged
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleActive:
		return "active"
	case LifecycleTrashed:
		return "trashed"
	case LifecycleArchived:
		return "archived"
	case LifecyclePurged:
		return "purged"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
}

type Transition string

const (
	TransitionTrash   Transition = "trash"
	TransitionArchive Transition = "archive"
	TransitionRestore Transition = "restore"
	TransitionPurge   Transition = "purge"
)

type InvalidTransitionError struct {
	From Lifecycle
	Op   Transition
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s survey", e.Op, e.From)
}

// Apply returns the state reached by applying t. Purged is terminal.
func (l Lifecycle) Apply(t Transition) (Lifecycle, error) {
	switch t {
	case TransitionTrash:
		if l == LifecycleActive {
			return LifecycleTrashed, nil
		}
	case TransitionArchive:
		if l == LifecycleActive {
			return LifecycleArchived, nil
		}
	case TransitionRestore:
		if l == LifecycleTrashed || l == LifecycleArchived {
			return LifecycleActive, nil
		}
	case TransitionPurge:
		if l == LifecycleTrashed || l == LifecycleArchived {
			return LifecyclePurged, nil
		}
	}
	return l, InvalidTransitionError{From: l, Op: t}
}

// StatusFor is the wire status a survey is moved to when entering the
// given resting state.
func StatusFor(l Lifecycle) (SurveyStatus, bool) {
	switch l {
	case LifecycleActive:
		return SurveyStatusActive, true
	case LifecycleTrashed:
		return SurveyStatusInactive, true
	case LifecycleArchived:
		return SurveyStatusDraft, true
	default:
		return "", false
	}
}

type TargetKind string

const (
	TargetWorkspace TargetKind = "workspace"
	TargetSurvey    TargetKind = "survey"
)

// Target is the item a context menu or dialog acts on.
type Target struct {
	Kind      TargetKind
	Survey    *TrashRow
	Workspace *TrashedWorkspace
}

func (t Target) ID() string {
	switch {
	case t.Kind == TargetSurvey && t.Survey != nil:
		return t.Survey.ID
	case t.Kind == TargetWorkspace && t.Workspace != nil:
		return t.Workspace.ID
	}
	return ""
}

func (t Target) Label() string {
	switch {
	case t.Kind == TargetSurvey && t.Survey != nil:
		return t.Survey.Title
	case t.Kind == TargetWorkspace && t.Workspace != nil:
		return t.Workspace.Name
	}
	return ""
}
