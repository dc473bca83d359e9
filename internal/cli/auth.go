package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"survey-admin/internal/alert"
	"survey-admin/internal/api"
)

func newLoginCmd(app *App) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := app.open(ctx, nil, nil)
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.sess.Init(ctx)

			if strings.TrimSpace(password) == "" {
				password = envOr("SURVEYADMIN_PASSWORD", "")
			}
			if strings.TrimSpace(password) == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("password required (--password, $SURVEYADMIN_PASSWORD or stdin)")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			tr, user, err := rt.client.SignIn(ctx, api.Credentials{Email: strings.TrimSpace(email), Password: password})
			if err != nil {
				return err
			}
			if err := rt.sess.Login(ctx, tr.AccessToken, user); err != nil {
				return err
			}
			meta := map[string]any{"api": rt.settings.APIURL}
			if exp, ok := tokenExpiry(tr.AccessToken); ok {
				meta["expiresAt"] = exp.UTC().Format(time.RFC3339)
			}
			if next, ok := rt.sess.TakeRedirectAfterLogin(ctx); ok {
				meta["resume"] = next
			}
			return writeOut(cmd, app, map[string]any{
				"data": user,
				"meta": meta,
				"_hints": []string{
					"surveyadmin trash list",
					"surveyadmin whoami",
				},
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (or $SURVEYADMIN_PASSWORD, or read from stdin)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := app.open(ctx, nil, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			wasAuthenticated := rt.sess.Init(ctx).Authenticated
			if wasAuthenticated {
				// Remote logout is best effort.
				if err := rt.client.Logout(ctx); err != nil {
					rt.log.Auth().Info("remote logout failed", "err", err)
				}
			}
			if err := rt.sess.Logout(ctx); err != nil {
				return err
			}
			// Acknowledge the informational alert the session raised.
			if req := rt.broker.Current(); req.Open {
				fmt.Fprintln(cmd.ErrOrStderr(), req.Message)
				if _, err := rt.broker.Resolve(req.Ticket, alert.DecisionConfirm); err != nil {
					return err
				}
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"loggedOut": true, "hadSession": wasAuthenticated},
			})
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
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

			st := rt.sess.State()
			user := *st.User
			if !offline {
				fresh, err := rt.client.Me(ctx)
				if err != nil {
					if errors.Is(err, api.ErrUnauthorized) {
						return errors.New("session expired; run `surveyadmin login` again")
					}
					return err
				}
				if err := rt.sess.SetUser(ctx, fresh); err != nil {
					return err
				}
				user = fresh
			}

			meta := map[string]any{"api": rt.settings.APIURL, "storage": rt.settings.Storage}
			if exp, ok := tokenExpiry(st.Token); ok {
				meta["expiresAt"] = exp.UTC().Format(time.RFC3339)
				meta["expired"] = time.Now().After(exp)
			}
			return writeOut(cmd, app, map[string]any{"data": user, "meta": meta})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Only read the stored session")
	return cmd
}

// tokenExpiry reads the exp claim without verifying the signature. The
// client never holds the signing key.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
