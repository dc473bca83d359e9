package cli

import (
	"github.com/spf13/cobra"

	"survey-admin/internal/trash"
)

func newWorkspacesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Trash, restore and purge workspaces",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "trash <workspace-id>",
		Short: "Move a workspace to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := app.open(ctx, nil, nil)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runDirect(cmd, app, rt, "trash", args[0], func() error {
				return rt.rec.TrashWorkspace(ctx, args[0])
			})
		},
	})

	for _, a := range []struct {
		name, short string
		pick        func(*trash.Reconciler) requestFunc
	}{
		{"restore", "Restore a trashed workspace", func(r *trash.Reconciler) requestFunc { return r.RequestRestore }},
		{"purge", "Delete a trashed workspace permanently", func(r *trash.Reconciler) requestFunc { return r.RequestPurge }},
	} {
		var yes bool
		pick := a.pick
		action := a.name
		sub := &cobra.Command{
			Use:   action + " <workspace-id>",
			Short: a.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				rt, err := app.open(ctx, nil, nil)
				if err != nil {
					return err
				}
				defer rt.Close()
				return runConfirmed(cmd, app, rt, action, trash.TabWorkspaces, args[0], yes, pick(rt.rec))
			},
		}
		sub.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
		cmd.AddCommand(sub)
	}
	return cmd
}
