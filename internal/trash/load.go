package trash

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"survey-admin/internal/model"
)

type surveyBranch struct {
	names   map[string]string
	active  []model.TrashRow
	trashed []model.TrashRow
	err     error
}

type archiveBranch struct {
	rows []model.TrashRow
	err  error
}

type workspaceBranch struct {
	rows []model.TrashedWorkspace
	err  error
}

// Load repopulates every collection. The three branches run concurrently
// and fail independently: a failed branch empties its own collection and
// emits one error notification. A load that finishes after a newer one was
// applied is dropped.
func (r *Reconciler) Load(ctx context.Context) (LoadResult, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return LoadResult{}, ErrClosed
	}
	r.loadSeq++
	gen := r.loadSeq
	startMut := r.mutSeq
	r.loading++
	r.signalLocked()
	r.mu.Unlock()

	var (
		sb surveyBranch
		ab archiveBranch
		wb workspaceBranch
		g  errgroup.Group
	)
	g.Go(func() error { sb = r.fetchSurveys(ctx); return nil })
	g.Go(func() error { ab = r.fetchArchived(ctx); return nil })
	g.Go(func() error { wb = r.fetchTrashedWorkspaces(ctx); return nil })
	_ = g.Wait()

	// Archive rows only carry the survey's own workspace_name.
	if sb.err == nil {
		for i, row := range ab.rows {
			if n, ok := sb.names[row.WorkspaceID]; ok && row.WorkspaceName == model.UnknownWorkspaceName {
				ab.rows[i].WorkspaceName = n
			}
		}
	}

	return r.apply(gen, startMut, sb, ab, wb)
}

func (r *Reconciler) fetchSurveys(ctx context.Context) surveyBranch {
	ws, err := r.remote.ListWorkspaces(ctx)
	if err != nil {
		return surveyBranch{err: fmt.Errorf("list workspaces: %w", err)}
	}
	names := make(map[string]string, len(ws))
	for _, w := range ws {
		names[w.ID] = w.Title
	}

	lists := make([][]model.Survey, len(ws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, w := range ws {
		g.Go(func() error {
			s, err := r.remote.ListSurveys(gctx, w.ID)
			if err != nil {
				return fmt.Errorf("list surveys of workspace %s: %w", w.ID, err)
			}
			lists[i] = s
			return nil
		})
	}
	// Partial results are never surfaced.
	if err := g.Wait(); err != nil {
		return surveyBranch{err: err}
	}

	out := surveyBranch{names: names}
	for _, l := range lists {
		for _, s := range l {
			row := model.NewTrashRow(s, names[s.WorkspaceID])
			switch s.Status {
			case model.SurveyStatusInactive:
				out.trashed = append(out.trashed, row)
			case model.SurveyStatusActive:
				out.active = append(out.active, row)
			}
		}
	}
	return out
}

func (r *Reconciler) fetchArchived(ctx context.Context) archiveBranch {
	page, err := r.remote.ListArchivedSurveys(ctx)
	if err != nil {
		return archiveBranch{err: fmt.Errorf("list archived surveys: %w", err)}
	}
	rows := make([]model.TrashRow, 0, len(page.Surveys))
	for _, s := range page.Surveys {
		rows = append(rows, model.NewTrashRow(s, ""))
	}
	return archiveBranch{rows: rows}
}

func (r *Reconciler) fetchTrashedWorkspaces(ctx context.Context) workspaceBranch {
	ws, err := r.remote.ListAllWorkspaces(ctx)
	if err != nil {
		return workspaceBranch{err: fmt.Errorf("list workspaces: %w", err)}
	}
	rows := []model.TrashedWorkspace{}
	for _, w := range ws {
		if w.Trashed() {
			rows = append(rows, model.NewTrashedWorkspace(w))
		}
	}
	return workspaceBranch{rows: rows}
}

func (r *Reconciler) apply(gen, startMut uint64, sb surveyBranch, ab archiveBranch, wb workspaceBranch) (LoadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading--
	res := LoadResult{Generation: gen, TrashErr: sb.err, ArchiveErr: ab.err, WorkspacesErr: wb.err}
	if r.closed {
		r.log.Debug("load finished after close", "generation", gen)
		return res, ErrClosed
	}
	if gen < r.appliedGen {
		r.log.Debug("stale load dropped", "generation", gen, "applied", r.appliedGen)
		res.Stale = true
		r.signalLocked()
		return res, nil
	}

	hidden := func(kind model.TargetKind, id string, in collection) bool {
		t, ok := r.tombs[entityKey{kind, id}]
		return ok && t.seq > startMut && t.keep != in
	}

	// Each survey lives in exactly one collection: trashed wins over
	// archived, archived over active.
	seen := map[string]bool{}
	take := func(rows []model.TrashRow, in collection) []model.TrashRow {
		out := []model.TrashRow{}
		for _, row := range rows {
			if seen[row.ID] || hidden(model.TargetSurvey, row.ID, in) {
				continue
			}
			seen[row.ID] = true
			out = append(out, row)
		}
		return out
	}
	r.trashed = take(sb.trashed, collTrashed)
	r.archived = take(ab.rows, collArchived)
	r.active = take(sb.active, collActive)

	r.workspaces = []model.TrashedWorkspace{}
	for _, w := range wb.rows {
		if hidden(model.TargetWorkspace, w.ID, collWorkspaces) {
			continue
		}
		r.workspaces = append(r.workspaces, w)
	}

	// Tombstones older than this load are reflected remotely now.
	for k, t := range r.tombs {
		if t.seq <= startMut {
			delete(r.tombs, k)
		}
	}

	r.appliedGen = gen
	r.lastLoad = res
	r.loaded = true

	if sb.err != nil {
		r.log.Error("load trashed surveys", "err", sb.err)
		r.notifyLocked(SeverityError, "Failed to load trash data: "+sb.err.Error())
	}
	if ab.err != nil {
		r.log.Error("load archived surveys", "err", ab.err)
		r.notifyLocked(SeverityError, "Failed to load archived surveys: "+ab.err.Error())
	}
	if wb.err != nil {
		r.log.Error("load trashed workspaces", "err", wb.err)
		r.notifyLocked(SeverityError, "Failed to load trashed workspaces: "+wb.err.Error())
	}
	r.log.Debug("load applied", "generation", gen,
		"trashed", len(r.trashed), "archived", len(r.archived), "active", len(r.active), "workspaces", len(r.workspaces))
	r.signalLocked()
	return res, nil
}
