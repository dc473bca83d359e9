package cli

import (
	"context"

	"github.com/spf13/cobra"

	"survey-admin/internal/trash"
)

func newSurveysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "surveys",
		Short: "Move surveys to the trash or the archive",
	}
	cmd.AddCommand(newSurveyMoveCmd(app, "trash", "Move an active survey to the trash", (*trash.Reconciler).Trash))
	cmd.AddCommand(newSurveyMoveCmd(app, "archive", "Archive an active survey", (*trash.Reconciler).Archive))
	return cmd
}

func newSurveyMoveCmd(app *App, action, short string, op func(*trash.Reconciler, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <survey-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := app.open(ctx, nil, nil)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runDirect(cmd, app, rt, action, args[0], func() error {
				return op(rt.rec, ctx, args[0])
			})
		},
	}
}
