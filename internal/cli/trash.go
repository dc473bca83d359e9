package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"survey-admin/internal/alert"
	"survey-admin/internal/model"
	"survey-admin/internal/trash"
)

// trashListing is the `trash list` payload.
type trashListing struct {
	Trash      []model.TrashRow         `json:"trash"`
	Archive    []model.TrashRow         `json:"archive"`
	Workspaces []model.TrashedWorkspace `json:"workspaces"`
}

func (l trashListing) Header() []string {
	return []string{"tab", "id", "name", "workspace", "responses", "since"}
}

func (l trashListing) Rows() [][]string {
	var out [][]string
	add := func(tab trash.Tab, rows []model.TrashRow) {
		for _, r := range rows {
			out = append(out, []string{string(tab), r.ID, r.Title, r.WorkspaceName, strconv.Itoa(r.ResponsesCount), r.ArchivedAt})
		}
	}
	add(trash.TabTrash, l.Trash)
	add(trash.TabArchive, l.Archive)
	for _, w := range l.Workspaces {
		out = append(out, []string{string(trash.TabWorkspaces), w.ID, w.Name, "-", strconv.Itoa(w.ResponsesCount), w.DeletedAt})
	}
	return out
}

func newTrashCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "Inspect, restore and purge trashed and archived items",
	}
	cmd.AddCommand(newTrashListCmd(app))
	cmd.AddCommand(newTrashActionCmd(app, "restore", "Restore an item to active", func(rec *trash.Reconciler) requestFunc {
		return rec.RequestRestore
	}))
	cmd.AddCommand(newTrashActionCmd(app, "purge", "Delete an item permanently", func(rec *trash.Reconciler) requestFunc {
		return rec.RequestPurge
	}))
	return cmd
}

func newTrashListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List trashed surveys, archived surveys and trashed workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := app.open(ctx, nil, nil)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireSession(ctx); err != nil {
				return err
			}

			res, err := rt.rec.Load(ctx)
			if err != nil {
				return err
			}
			snap := rt.rec.Snapshot()
			out := trashListing{
				Trash:      nonNilRows(snap.Trashed),
				Archive:    nonNilRows(snap.Archived),
				Workspaces: nonNilWorkspaces(snap.Workspaces),
			}
			errs := map[string]any{}
			for tab, e := range map[trash.Tab]error{
				trash.TabTrash:      res.TrashErr,
				trash.TabArchive:    res.ArchiveErr,
				trash.TabWorkspaces: res.WorkspacesErr,
			} {
				if e != nil {
					errs[string(tab)] = e.Error()
				}
			}
			meta := map[string]any{
				"counts": map[string]int{
					"trash":      len(out.Trash),
					"archive":    len(out.Archive),
					"workspaces": len(out.Workspaces),
				},
			}
			if len(errs) > 0 {
				meta["errors"] = errs
			}
			return writeOut(cmd, app, map[string]any{
				"data": out,
				"meta": meta,
				"_hints": []string{
					"surveyadmin trash restore <id> --tab trash|archive|workspaces",
					"surveyadmin trash purge <id> --tab trash|archive|workspaces",
				},
			})
		},
	}
}

type requestFunc func(tab trash.Tab, id string) (alert.Ticket, error)

func newTrashActionCmd(app *App, action, short string, pick func(*trash.Reconciler) requestFunc) *cobra.Command {
	var tabName string
	var yes bool

	cmd := &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, err := trash.ParseTab(tabName)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := app.open(ctx, nil, nil)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runConfirmed(cmd, app, rt, action, tab, args[0], yes, pick(rt.rec))
		},
	}

	cmd.Flags().StringVar(&tabName, "tab", string(trash.TabTrash), "Where the item is (trash|archive|workspaces)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// runConfirmed loads the collections, asks for confirmation through the
// broker and waits for the operation and its refetch to finish.
func runConfirmed(cmd *cobra.Command, app *App, rt *runtime, action string, tab trash.Tab, id string, yes bool, request requestFunc) error {
	ctx := cmd.Context()
	if err := rt.requireSession(ctx); err != nil {
		return err
	}
	if _, err := rt.rec.Load(ctx); err != nil {
		return err
	}
	warnings := noteMessages(drainNotes(rt.rec))

	ticket, err := request(tab, id)
	if err != nil {
		return err
	}
	confirmed, err := answerConfirmation(cmd, rt.broker, ticket, yes)
	if err != nil {
		return err
	}
	data := map[string]any{"id": id, "tab": tab, "action": action, "confirmed": confirmed}
	if !confirmed {
		return writeOut(cmd, app, map[string]any{"data": data})
	}

	rt.rec.Wait()
	msg, followUp, err := outcome(drainNotes(rt.rec))
	if err != nil {
		return err
	}
	warnings = append(warnings, followUp...)
	data["message"] = msg
	return writeOut(cmd, app, map[string]any{"data": data, "meta": snapshotMeta(rt.rec.Snapshot(), warnings)})
}

// runDirect performs an unconfirmed transition and waits for the refetch.
func runDirect(cmd *cobra.Command, app *App, rt *runtime, action, id string, op func() error) error {
	ctx := cmd.Context()
	if err := rt.requireSession(ctx); err != nil {
		return err
	}
	if _, err := rt.rec.Load(ctx); err != nil {
		return err
	}
	warnings := noteMessages(drainNotes(rt.rec))
	if err := op(); err != nil {
		return fmt.Errorf("%s %s: %w", action, id, err)
	}
	rt.rec.Wait()
	msg, followUp, err := outcome(drainNotes(rt.rec))
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, id, err)
	}
	warnings = append(warnings, followUp...)
	return writeOut(cmd, app, map[string]any{
		"data": map[string]any{"id": id, "action": action, "message": msg},
		"meta": snapshotMeta(rt.rec.Snapshot(), warnings),
	})
}

func snapshotMeta(snap trash.Snapshot, warnings []string) map[string]any {
	meta := map[string]any{
		"counts": map[string]int{
			"trash":      len(snap.Trashed),
			"archive":    len(snap.Archived),
			"workspaces": len(snap.Workspaces),
		},
	}
	if len(warnings) > 0 {
		meta["warnings"] = warnings
	}
	return meta
}

func nonNilRows(rows []model.TrashRow) []model.TrashRow {
	if rows == nil {
		return []model.TrashRow{}
	}
	return rows
}

func nonNilWorkspaces(rows []model.TrashedWorkspace) []model.TrashedWorkspace {
	if rows == nil {
		return []model.TrashedWorkspace{}
	}
	return rows
}
