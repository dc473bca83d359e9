package cli

import (
	"context"
	"errors"

	"survey-admin/internal/alert"
	"survey-admin/internal/api"
	"survey-admin/internal/config"
	"survey-admin/internal/guard"
	"survey-admin/internal/logging"
	"survey-admin/internal/session"
	"survey-admin/internal/store"
	"survey-admin/internal/trash"
)

var errNotLoggedIn = errors.New("not logged in; run `surveyadmin login` first")

// runtime is the wired client: one broker shared by the session store and
// the reconciler, one API client authenticating through the session.
type runtime struct {
	settings config.Settings
	store    store.Store
	log      *logging.Logger
	kv       store.KV
	broker   *alert.Broker
	sess     *session.Session
	client   *api.Client
	rec      *trash.Reconciler
	guard    *guard.Guard
}

// open builds the runtime. location reports the screen on display when a
// request comes back unauthorized; nil means there is none.
func (app *App) open(ctx context.Context, nav session.Navigator, location func() string) (*runtime, error) {
	st, err := config.Resolve(app.Dir, app.APIURL, app.Storage)
	if err != nil {
		return nil, err
	}
	s := store.Store{Dir: st.Dir}
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Config{Path: s.LogPath(), Level: logging.ParseLevel(st.LogLevel)})
	if err != nil {
		return nil, err
	}
	kv, err := s.OpenKV(ctx, st.Storage)
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	rt := &runtime{settings: st, store: s, log: log, kv: kv}
	rt.broker = alert.New(log.Alert())
	if nav == nil {
		nav = session.NavigatorFunc(func(path string) {
			log.System().Debug("navigation requested outside the dashboard", "path", path)
		})
	}
	rt.sess = session.New(kv, rt.broker, nav, log.Auth())
	rt.client = api.New(api.Options{
		BaseURL: st.APIURL,
		Timeout: st.HTTPTimeout,
		Tokens:  rt.sess,
		Logger:  log.API(),
		OnUnauthorized: func(ctx context.Context) {
			path := ""
			if location != nil {
				path = location()
			}
			rt.sess.ExpireSession(ctx, path)
		},
	})
	rt.rec = trash.New(trash.Options{
		Remote:       rt.client,
		Broker:       rt.broker,
		Logger:       log.Trash(),
		RefetchDelay: st.RefetchDelay,
	})
	rt.guard = guard.New(rt.sess, log.Auth())
	return rt, nil
}

// requireSession rehydrates the stored session and fails when nobody is
// signed in.
func (rt *runtime) requireSession(ctx context.Context) error {
	if !rt.sess.Init(ctx).Authenticated {
		return errNotLoggedIn
	}
	return nil
}

func (rt *runtime) Close() {
	rt.rec.Close()
	rt.rec.Wait()
	rt.sess.Teardown()
	rt.broker.Teardown()
	if err := rt.kv.Close(); err != nil {
		rt.log.System().Warn("close session storage", "err", err)
	}
	_ = rt.log.Close()
}
