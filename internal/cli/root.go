package cli

import (
	"fmt"
	"os"
	"strings"

	"survey-admin/internal/config"
	"survey-admin/internal/format"
	"survey-admin/internal/tui"

	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	APIURL     string
	Storage    string
	EnvFile    string
	PrettyJSON bool
	Format     string
	StartPath  string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:           "surveyadmin",
		Short:         "Survey admin dashboard (TUI + scriptable CLI)",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive dashboard
  surveyadmin

  # Sign in for scripted use
  surveyadmin login --email admin@example.com --password password

  # Inspect and empty the trash
  surveyadmin trash list --format table
  surveyadmin trash restore <survey-id> --tab archive --yes

  # Local backend for development
  surveyadmin mock-api --addr :8000

  # Dashboard in a browser terminal
  surveyadmin web --addr 127.0.0.1:8090
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app)
		},
	}

	// Settings are resolved inside each command, after the .env file has
	// been loaded here.
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(app.EnvFile); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: "+err.Error())
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", "", "State directory (default: $"+config.EnvDir+" or ~/.surveyadmin)")
	cmd.PersistentFlags().StringVar(&app.APIURL, "api", "", "API base URL (default: $"+config.EnvAPIURL+", config.json, "+config.DefaultAPIURL+")")
	cmd.PersistentFlags().StringVar(&app.Storage, "storage", "", "Session storage backend (sqlite|file|memory)")
	cmd.PersistentFlags().StringVar(&app.EnvFile, "env-file", ".env", "Dotenv file loaded at startup if present")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("SURVEYADMIN_FORMAT", "json"), "Output format (json|table)")
	cmd.Flags().StringVar(&app.StartPath, "path", "/dashboard", "Route to open the dashboard at (e.g. /trash?tab=archive)")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newTrashCmd(app))
	cmd.AddCommand(newSurveysCmd(app))
	cmd.AddCommand(newWorkspacesCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newMockAPICmd(app))
	cmd.AddCommand(newWebCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func runTUI(cmd *cobra.Command, app *App) error {
	nav := tui.NewNavigator()
	rt, err := app.open(cmd.Context(), nav, nav.Current)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.log.System().Info("dashboard start", "api", rt.settings.APIURL, "storage", rt.settings.Storage)
	return tui.Run(cmd.Context(), tui.Options{
		Session:    rt.sess,
		Guard:      rt.guard,
		Reconciler: rt.rec,
		Broker:     rt.broker,
		Auth:       rt.client,
		Navigator:  nav,
		Store:      rt.store,
		Logger:     rt.log.TUI(),
		StartPath:  app.StartPath,
	})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}
