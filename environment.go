package restadmin

import (
	"context"
	"sync"
	"time"

	"github.com/evergreen-ci/restadmin/db"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// Environment provides application-level services: the settings and the
// record store, plus a registry of functions to call at shutdown.
type Environment interface {
	// Settings returns the validated settings object.
	Settings() *Settings
	// Store is the record store selected by the database settings.
	Store() db.Store

	// RegisterCloser adds a function to be called by Close. The name is
	// used in reporting and should be unique.
	RegisterCloser(string, func(context.Context) error)
	// Close calls all registered closers in the environment.
	Close(context.Context) error
}

// NewEnvironment constructs an Environment from the settings file at
// confPath, or from settings when confPath is empty, and opens the
// configured store.
func NewEnvironment(ctx context.Context, confPath string, settings *Settings) (Environment, error) {
	e := &envState{
		settings: settings,
		closers:  map[string]func(context.Context) error{},
	}

	if err := e.Configure(ctx, confPath); err != nil {
		return nil, errors.WithStack(err)
	}

	return e, nil
}

type envState struct {
	settings *Settings
	store    db.Store
	closers  map[string]func(context.Context) error
	mu       sync.RWMutex
}

// Configure loads and validates settings, then opens the store. It may
// only be called once.
func (e *envState) Configure(ctx context.Context, confPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store != nil {
		return errors.New("environment is already configured")
	}
	if e.closers == nil {
		e.closers = map[string]func(context.Context) error{}
	}

	if err := e.initSettings(confPath); err != nil {
		return errors.WithStack(err)
	}
	if err := e.initLogging(); err != nil {
		return errors.Wrap(err, "configuring logging")
	}
	if err := e.initStore(ctx); err != nil {
		return errors.Wrap(err, "configuring store")
	}
	if err := e.initTracer(ctx); err != nil {
		return errors.Wrap(err, "configuring tracer")
	}

	return nil
}

func (e *envState) initSettings(path string) error {
	var err error
	if path != "" {
		e.settings, err = NewSettings(path)
		if err != nil {
			return errors.Wrap(err, "getting settings from file")
		}
	}
	if e.settings == nil {
		return errors.New("no settings file or settings given")
	}

	return errors.Wrap(e.settings.Validate(), "validating settings")
}

func (e *envState) initLogging() error {
	if e.settings.LogLevel == "" {
		return nil
	}

	sender := grip.GetSender()
	info := sender.Level()
	info.Threshold = level.FromString(e.settings.LogLevel)
	return sender.SetLevel(info)
}

func (e *envState) initStore(ctx context.Context) error {
	conf := e.settings.Database

	var err error
	switch conf.Driver {
	case DriverMemory:
		e.store = db.NewMemoryStore()
	case DriverMongoDB:
		e.store, err = db.NewMongoStore(ctx, conf.URL, conf.DB)
	case DriverPostgres:
		e.store, err = db.NewPostgresStore(ctx, conf.URL)
	default:
		err = errors.Errorf("unknown database driver '%s'", conf.Driver)
	}
	if err != nil {
		return errors.Wrapf(err, "opening %s store", conf.Driver)
	}

	grip.Info(message.Fields{
		"message": "opened record store",
		"driver":  conf.Driver,
		"db":      conf.DB,
	})

	store := e.store
	e.closers["store"] = store.Close
	return nil
}

func (e *envState) Settings() *Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.settings
}

func (e *envState) Store() db.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.store
}

func (e *envState) RegisterCloser(name string, closer func(context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.closers[name]; ok {
		grip.Critical(message.Fields{
			"closer":  name,
			"message": "duplicate closer registered",
			"cause":   "programmer error",
		})
	}
	e.closers[name] = closer
}

func (e *envState) Close(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	deadline, hasDeadline := ctx.Deadline()
	catcher := grip.NewBasicCatcher()
	wg := &sync.WaitGroup{}
	for n, closer := range e.closers {
		if closer == nil {
			continue
		}

		wg.Add(1)
		go func(name string, close func(context.Context) error) {
			defer wg.Done()
			msg := message.Fields{
				"message": "calling closer",
				"closer":  name,
			}
			if hasDeadline {
				msg["timeout_secs"] = time.Until(deadline).Seconds()
				msg["deadline"] = deadline
			}
			grip.Info(msg)
			catcher.Wrapf(close(ctx), "closer '%s'", name)
		}(n, closer)
	}

	wg.Wait()
	return catcher.Resolve()
}
