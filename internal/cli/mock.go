package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"survey-admin/internal/config"
	"survey-admin/internal/logging"
	"survey-admin/internal/mockapi"
	"survey-admin/internal/store"
)

func newMockAPICmd(app *App) *cobra.Command {
	var addr, secret string
	var opts mockapi.Options

	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Serve an in-memory survey backend for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := config.Resolve(app.Dir, app.APIURL, app.Storage)
			if err != nil {
				return err
			}
			s := store.Store{Dir: st.Dir}
			if err := s.Ensure(); err != nil {
				return err
			}
			log, err := logging.New(logging.Config{Path: s.LogPath(), Level: logging.ParseLevel(st.LogLevel)})
			if err != nil {
				return err
			}
			defer log.Close()

			opts.Secret = secret
			if opts.Secret == "" {
				opts.Secret = os.Getenv("SURVEYADMIN_MOCK_SECRET")
			}
			opts.Logger = log.Mock()
			srv, err := mockapi.New(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "mock API listening on %s (sign in as %s / %s)\n", addr, mockapi.DefaultEmail, mockapi.DefaultPassword)
			log.Mock().Info("listening", "addr", addr, "seeded", !opts.Empty)
			return srv.Start(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address")
	cmd.Flags().StringVar(&secret, "secret", "", "Token signing secret (default: $SURVEYADMIN_MOCK_SECRET or random)")
	cmd.Flags().BoolVar(&opts.Empty, "empty", false, "Start without the demo dataset")
	cmd.Flags().BoolVar(&opts.RejectActiveFilter, "reject-active-filter", false, "Answer 422 to the is_active workspace filter")
	cmd.Flags().BoolVar(&opts.WrapArchive, "wrap-archive", false, "Wrap the archive listing in {\"data\": ...}")
	return cmd
}
