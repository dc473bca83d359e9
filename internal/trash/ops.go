package trash

import (
	"context"
	"fmt"
	"time"

	"survey-admin/internal/alert"
	"survey-admin/internal/model"
)

type op struct {
	key   entityKey
	tab   Tab
	tr    model.Transition
	label string
	// workspace is the survey's workspace name, shown in the restore prompt.
	workspace string
	from      collection
}

func (o op) noun() string {
	if o.key.kind == model.TargetWorkspace {
		return "workspace"
	}
	return "survey"
}

// plan validates a mutation against the local collections without
// claiming the entity.
func (r *Reconciler) plan(tab Tab, id string, tr model.Transition) (op, error) {
	tab, err := ParseTab(string(tab))
	if err != nil {
		return op{}, err
	}
	o := op{key: entityKey{tab.kind(), id}, tab: tab, tr: tr, label: id}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return op{}, ErrClosed
	}
	if r.busy[o.key] {
		return op{}, ErrBusy
	}

	state := model.LifecycleActive
	switch tr {
	case model.TransitionRestore, model.TransitionPurge:
		found := false
		switch tab {
		case TabTrash:
			if row, ok := findRow(r.trashed, id); ok {
				o.label, o.workspace, found = row.Title, row.WorkspaceName, true
			}
			state, o.from = model.LifecycleTrashed, collTrashed
		case TabArchive:
			if row, ok := findRow(r.archived, id); ok {
				o.label, o.workspace, found = row.Title, row.WorkspaceName, true
			}
			state, o.from = model.LifecycleArchived, collArchived
		case TabWorkspaces:
			for _, w := range r.workspaces {
				if w.ID == id {
					o.label, found = w.Name, true
					break
				}
			}
			state, o.from = model.LifecycleTrashed, collWorkspaces
		}
		if !found {
			return op{}, NotFoundError{Tab: tab, ID: id}
		}
	case model.TransitionTrash, model.TransitionArchive:
		if o.key.kind == model.TargetSurvey {
			if _, ok := findRow(r.trashed, id); ok {
				state = model.LifecycleTrashed
			} else if _, ok := findRow(r.archived, id); ok {
				state = model.LifecycleArchived
			}
			if row, ok := findRow(r.active, id); ok {
				o.label = row.Title
			}
		} else {
			for _, w := range r.workspaces {
				if w.ID == id {
					state = model.LifecycleTrashed
				}
			}
		}
		o.from = collActive
	}
	if _, err := state.Apply(tr); err != nil {
		return op{}, err
	}
	return o, nil
}

func findRow(rows []model.TrashRow, id string) (model.TrashRow, bool) {
	for _, row := range rows {
		if row.ID == id {
			return row, true
		}
	}
	return model.TrashRow{}, false
}

// begin claims the entity and registers the operation with the wait group.
func (r *Reconciler) begin(o op) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.busy[o.key] {
		return ErrBusy
	}
	r.busy[o.key] = true
	r.wg.Add(1)
	r.signalLocked()
	return nil
}

// restore moves an entity out of tab back to active. On success it leaves
// the tab's collection at once and a full refetch follows. Callers outside
// the package go through RequestRestore.
func (r *Reconciler) restore(ctx context.Context, tab Tab, id string) error {
	return r.do(ctx, tab, id, model.TransitionRestore)
}

// purge permanently deletes an entity held in tab. Callers outside the
// package go through RequestPurge.
func (r *Reconciler) purge(ctx context.Context, tab Tab, id string) error {
	return r.do(ctx, tab, id, model.TransitionPurge)
}

// Trash moves an active survey to the trash.
func (r *Reconciler) Trash(ctx context.Context, id string) error {
	return r.do(ctx, TabTrash, id, model.TransitionTrash)
}

// Archive moves an active survey to the archive.
func (r *Reconciler) Archive(ctx context.Context, id string) error {
	return r.do(ctx, TabArchive, id, model.TransitionArchive)
}

// TrashWorkspace moves an active workspace to the trash.
func (r *Reconciler) TrashWorkspace(ctx context.Context, id string) error {
	return r.do(ctx, TabWorkspaces, id, model.TransitionTrash)
}

func (r *Reconciler) do(ctx context.Context, tab Tab, id string, tr model.Transition) error {
	o, err := r.plan(tab, id, tr)
	if err != nil {
		return err
	}
	if err := r.begin(o); err != nil {
		return err
	}
	defer r.wg.Done()
	return r.run(ctx, o)
}

func (r *Reconciler) run(ctx context.Context, o op) error {
	start := time.Now()
	err := r.call(ctx, o)
	r.log.Info("mutation finished", "op", o.tr, "kind", o.key.kind, "id", o.key.id,
		"duration_ms", time.Since(start).Milliseconds(), "err", err)
	r.finish(o, err)
	return err
}

func (r *Reconciler) call(ctx context.Context, o op) error {
	id := o.key.id
	if o.key.kind == model.TargetWorkspace {
		switch o.tr {
		case model.TransitionRestore:
			return r.remote.RestoreWorkspace(ctx, id)
		case model.TransitionPurge:
			return r.remote.PurgeWorkspace(ctx, id)
		case model.TransitionTrash:
			return r.remote.TrashWorkspace(ctx, id)
		}
		return model.InvalidTransitionError{From: model.LifecycleActive, Op: o.tr}
	}
	switch o.tr {
	case model.TransitionRestore:
		return r.remote.SetSurveyStatus(ctx, id, model.SurveyStatusActive)
	case model.TransitionPurge:
		return r.remote.PurgeSurvey(ctx, id)
	case model.TransitionTrash:
		return r.remote.SetSurveyStatus(ctx, id, model.SurveyStatusInactive)
	case model.TransitionArchive:
		return r.remote.ArchiveSurvey(ctx, id)
	}
	return model.InvalidTransitionError{From: model.LifecycleActive, Op: o.tr}
}

func (r *Reconciler) finish(o op, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.busy, o.key)
	if r.closed {
		r.log.Debug("result dropped after close", "op", o.tr, "id", o.key.id)
		return
	}
	if err != nil {
		r.notifyLocked(SeverityError, failureMessage(o, err))
		r.signalLocked()
		return
	}

	r.mutSeq++
	keep := collNone
	switch o.tr {
	case model.TransitionRestore:
		keep = collActive
	case model.TransitionTrash:
		keep = collTrashed
		if o.key.kind == model.TargetWorkspace {
			keep = collWorkspaces
		}
	case model.TransitionArchive:
		keep = collArchived
	}
	r.tombs[o.key] = tombstone{seq: r.mutSeq, keep: keep}

	switch o.key.kind {
	case model.TargetWorkspace:
		if o.tr != model.TransitionTrash {
			r.workspaces = removeWorkspace(r.workspaces, o.key.id)
		}
	default:
		switch o.tr {
		case model.TransitionRestore, model.TransitionPurge:
			// The tab decides where the entity is removed from.
			if o.from == collArchived {
				r.archived = removeRow(r.archived, o.key.id)
			} else {
				r.trashed = removeRow(r.trashed, o.key.id)
			}
			if o.tr == model.TransitionPurge {
				r.active = removeRow(r.active, o.key.id)
			}
		case model.TransitionTrash, model.TransitionArchive:
			row, ok := findRow(r.active, o.key.id)
			r.active = removeRow(r.active, o.key.id)
			if ok {
				if o.tr == model.TransitionTrash {
					r.trashed = append([]model.TrashRow{row}, r.trashed...)
				} else {
					r.archived = append([]model.TrashRow{row}, r.archived...)
				}
			}
		}
	}
	r.notifyLocked(SeveritySuccess, successMessage(o))
	r.signalLocked()

	// Purged entities cannot come back, so there is nothing to reconcile.
	if o.tr != model.TransitionPurge {
		r.scheduleRefetchLocked()
	}
}

func removeRow(rows []model.TrashRow, id string) []model.TrashRow {
	out := rows[:0:0]
	for _, row := range rows {
		if row.ID != id {
			out = append(out, row)
		}
	}
	return out
}

func removeWorkspace(rows []model.TrashedWorkspace, id string) []model.TrashedWorkspace {
	out := rows[:0:0]
	for _, w := range rows {
		if w.ID != id {
			out = append(out, w)
		}
	}
	return out
}

// scheduleRefetchLocked reconciles with the backend after the refetch delay.
// Mutations landing while a refetch is pending share it.
func (r *Reconciler) scheduleRefetchLocked() {
	if r.refetchPending {
		return
	}
	r.refetchPending = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTimer(r.delay)
		defer t.Stop()
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
		}
		r.mu.Lock()
		r.refetchPending = false
		r.mu.Unlock()

		res, err := r.Load(r.ctx)
		if err != nil {
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return
		}
		select {
		case r.reconciled <- res:
		default:
			r.log.Warn("reconciled result not consumed", "generation", res.Generation)
		}
	}()
}

// RequestRestore asks the user to confirm a restore. The operation starts
// in the background once confirmed.
func (r *Reconciler) RequestRestore(tab Tab, id string) (alert.Ticket, error) {
	o, err := r.plan(tab, id, model.TransitionRestore)
	if err != nil {
		return 0, err
	}
	msg := fmt.Sprintf("Restore %q?\nThe restored %s becomes active again.", o.label, o.noun())
	if o.key.kind == model.TargetSurvey && o.workspace != "" {
		msg += fmt.Sprintf("\nYou will find it in the %q workspace.", o.workspace)
	}
	return r.broker.Open("Restore", msg, r.startFunc(o)), nil
}

// RequestPurge asks the user to confirm a permanent deletion.
func (r *Reconciler) RequestPurge(tab Tab, id string) (alert.Ticket, error) {
	o, err := r.plan(tab, id, model.TransitionPurge)
	if err != nil {
		return 0, err
	}
	msg := fmt.Sprintf("Permanently delete %q?\nThis cannot be undone. All of its data will be deleted.", o.label)
	return r.broker.Open("Delete permanently", msg, r.startFunc(o)), nil
}

func (r *Reconciler) startFunc(o op) alert.Callback {
	return func() error {
		if err := r.begin(o); err != nil {
			return err
		}
		go func() {
			defer r.wg.Done()
			_ = r.run(r.ctx, o)
		}()
		return nil
	}
}

func successMessage(o op) string {
	switch o.tr {
	case model.TransitionRestore:
		return fmt.Sprintf("%q %s was restored.", o.label, o.noun())
	case model.TransitionPurge:
		return fmt.Sprintf("%q %s was permanently deleted.", o.label, o.noun())
	case model.TransitionTrash:
		return fmt.Sprintf("%q %s was moved to the trash.", o.label, o.noun())
	case model.TransitionArchive:
		return fmt.Sprintf("%q %s was archived.", o.label, o.noun())
	}
	return "Done."
}

func failureMessage(o op, err error) string {
	verb := map[model.Transition]string{
		model.TransitionRestore: "restore",
		model.TransitionPurge:   "permanently delete",
		model.TransitionTrash:   "move to the trash",
		model.TransitionArchive: "archive",
	}[o.tr]
	return fmt.Sprintf("Failed to %s %s: %v", verb, o.noun(), err)
}
