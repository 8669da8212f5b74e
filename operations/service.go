package operations

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/restadmin"
	"github.com/evergreen-ci/restadmin/auth"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Serve runs the REST admin service for the models in the settings file.
func Serve() cli.Command {
	return cli.Command{
		Name:    "serve",
		Usage:   "run the REST admin service",
		Aliases: []string{"service", "web"},
		Flags:   settingsFlags(),
		Before:  requireFileExists(settingsFlagName),
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			env, err := restadmin.NewEnvironment(ctx, c.String(settingsFlagName), nil)
			if err != nil {
				return errors.Wrap(err, "configuring application environment")
			}
			settings := env.Settings()
			wait := shutdownWait(settings.API)

			defer func() {
				closeCtx, closeCancel := context.WithTimeout(context.Background(), wait)
				defer closeCancel()
				grip.Warning(message.WrapError(env.Close(closeCtx), message.Fields{
					"message": "closing application environment",
				}))
			}()
			defer recovery.LogStackTraceAndContinue("restadmin service")

			handler, err := getHandler(env)
			if err != nil {
				return errors.WithStack(err)
			}

			grip.Notice(message.Fields{
				"build":   restadmin.BuildRevision,
				"process": grip.Name(),
				"models":  len(settings.Models),
				"prefix":  settings.API.Prefix,
			})

			go listenForSignals(cancel)

			return errors.WithStack(runServer(ctx, getServer(settings.API.Address(), handler), wait))
		},
	}
}

// getHandler assembles the gimlet application serving the registered
// models.
func getHandler(env restadmin.Environment) (http.Handler, error) {
	settings := env.Settings()

	registry, err := buildRegistry(settings, env.Store())
	if err != nil {
		return nil, errors.Wrap(err, "registering models")
	}

	um, err := auth.NewNaiveUserManager(settings.Users)
	if err != nil {
		return nil, errors.Wrap(err, "building user manager")
	}

	app := gimlet.NewApp()
	app.AddMiddleware(gimlet.MakeRecoveryLogger())
	app.AddMiddleware(gimlet.NewAppLogger())
	app.AddMiddleware(auth.UserMiddleware(um))

	if err = registry.Attach(app, settings.API.Prefix); err != nil {
		return nil, errors.Wrap(err, "attaching routes")
	}

	return app.Handler()
}

func getServer(addr string, n http.Handler) *http.Server {
	grip.Notice(message.Fields{
		"action":  "starting service",
		"service": addr,
		"build":   restadmin.BuildRevision,
		"process": grip.Name(),
	})

	return &http.Server{
		Addr:              addr,
		Handler:           n,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      time.Minute,
	}
}

// runServer serves until the context is canceled, then drains in-flight
// requests for at most wait.
func runServer(ctx context.Context, srv *http.Server, wait time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		defer recovery.LogStackTraceAndContinue("restadmin http server")
		defer close(serveErr)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "running HTTP service")
	case <-ctx.Done():
	}

	grip.Info(message.Fields{
		"message": "shutting down HTTP service",
		"service": srv.Addr,
		"wait":    wait.String(),
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutting down HTTP service")
}

func shutdownWait(conf restadmin.APIConfig) time.Duration {
	if conf.ShutdownWaitSeconds > 0 {
		return time.Duration(conf.ShutdownWaitSeconds) * time.Second
	}
	return restadmin.DefaultShutdownWait
}

func listenForSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	grip.Infof("received %s, terminating service", sig)
	cancel()
}
