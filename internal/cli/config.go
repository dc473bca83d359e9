package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"survey-admin/internal/config"
	"survey-admin/internal/logging"
	"survey-admin/internal/store"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the persisted client configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := config.Resolve(app.Dir, app.APIURL, app.Storage)
			if err != nil {
				return err
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"dir":          st.Dir,
					"apiUrl":       st.APIURL,
					"storage":      st.Storage,
					"logLevel":     st.LogLevel,
					"httpTimeout":  st.HTTPTimeout.String(),
					"refetchDelay": st.RefetchDelay.String(),
				},
				"meta": map[string]any{"configPath": store.Store{Dir: st.Dir}.ConfigPath()},
			})
		},
	})

	var apiURL, storage, level string
	set := &cobra.Command{
		Use:   "set",
		Short: "Persist settings to config.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := config.Resolve(app.Dir, "", "")
			if err != nil {
				return err
			}
			s := store.Store{Dir: st.Dir}
			cfg, err := s.LoadConfig()
			if err != nil {
				return err
			}
			changed := false
			if cmd.Flags().Changed("api-url") {
				cfg.APIURL = strings.TrimSpace(apiURL)
				changed = true
			}
			if cmd.Flags().Changed("storage-backend") {
				b, err := store.ParseBackend(storage)
				if err != nil {
					return err
				}
				cfg.Storage = b
				changed = true
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = strings.ToLower(logging.ParseLevel(level).String())
				changed = true
			}
			if !changed {
				return errors.New("nothing to set; pass --api-url, --storage-backend or --log-level")
			}
			if err := s.SaveConfig(cfg); err != nil {
				return err
			}
			return writeOut(cmd, app, map[string]any{"data": cfg})
		},
	}
	set.Flags().StringVar(&apiURL, "api-url", "", "API base URL")
	set.Flags().StringVar(&storage, "storage-backend", "", "Session storage backend (sqlite|file|memory)")
	set.Flags().StringVar(&level, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.AddCommand(set)
	return cmd
}
