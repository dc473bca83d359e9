package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"survey-admin/internal/config"
	"survey-admin/internal/logging"
	"survey-admin/internal/store"
	"survey-admin/internal/webtui"
)

func newWebCmd(app *App) *cobra.Command {
	var addr, path string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the dashboard to a browser terminal",
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

			srv, err := webtui.NewServer(webtui.ServerConfig{
				Addr:      addr,
				Args:      []string{"--dir", st.Dir, "--api", st.APIURL, "--storage", string(st.Storage)},
				StartPath: path,
				Logger:    log.System().With("component", "webtui"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hs := &http.Server{Addr: srv.Addr(), Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() { errCh <- hs.ListenAndServe() }()
			fmt.Fprintf(cmd.ErrOrStderr(), "dashboard available at http://%s/terminal\n", srv.Addr())

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return hs.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8090", "Listen address")
	cmd.Flags().StringVar(&path, "path", "/dashboard", "Default route for new sessions")
	return cmd
}
