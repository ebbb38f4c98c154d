package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-client/session"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func runWatch(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(cc.Out)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := displayAppname(cc.Out, cc.Config.GetAppName()); err != nil {
		return err
	}

	if cc.Config.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cc.Config.MetricsAddr,
			Handler:           promhttp.HandlerFor(cc.Deps.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go listenAndServe(cc, srv)
		defer shutdown(cc, srv)
	}

	return watch(cc)
}

// watch prints every snapshot until cc.Ctx is done. It never refreshes on its
// own; tokens are only renewed by a rejected request or an explicit refresh.
func watch(cc *commandContext) error {
	updates, cancel := cc.Deps.Manager.Subscribe()
	defer cancel()

	if _, err := restore(cc); err != nil {
		return err
	}

	for {
		select {
		case <-cc.Ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if err := printSnapshot(cc.Out, snap); err != nil {
				return err
			}
		}
	}
}

func printSnapshot(w io.Writer, snap session.Snapshot) error {
	user := "-"
	if snap.User != nil {
		user = snap.User.Name()
	}
	expires := "-"
	if !snap.AccessExpiresAt.IsZero() {
		expires = time.Until(snap.AccessExpiresAt).Truncate(time.Second).String()
	}
	return writef(w, "%s state=%s user=%s loading=%t expires_in=%s\n",
		time.Now().Format(time.TimeOnly), snap.State, user, snap.Loading, expires)
}

func listenAndServe(cc *commandContext, srv *http.Server) {
	cc.Logger.Info().Str("addr", srv.Addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cc.Logger.Error().Err(pkgerrors.Wrap(err, "server.ListenAndServe")).Msg("metrics listener stopped")
	}
}

func shutdown(cc *commandContext, srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		cc.Logger.Warn().Err(err).Msg("metrics server shutdown")
	}
}
