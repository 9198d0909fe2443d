package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/mossy/mossy/pkg/config"
	"github.com/mossy/mossy/pkg/plugins"
	"github.com/mossy/mossy/pkg/settings"
	"github.com/mossy/mossy/pkg/similarity"
	"github.com/mossy/mossy/pkg/stores"
	"github.com/mossy/mossy/pkg/telemetry"
)

// environment is what every subcommand works with: the effective
// settings, telemetry and, once opened, the concept store.
type environment struct {
	ctx      context.Context
	settings *settings.Settings
	tel      *telemetry.Telemetry
	logger   *telemetry.Logger
	store    *stores.SQLiteStore
}

// setup loads the settings, applies the global flags and then override,
// and starts telemetry. The caller must close the environment.
func setup(cmd *cobra.Command, flags *globalFlags, version string, override func(*settings.Settings)) (*environment, error) {
	path, err := settings.Find(flags.settingsPath, ".")
	if err != nil {
		return nil, err
	}
	s, err := settings.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.databasePath != "" {
		s.Database.Path = flags.databasePath
	}
	if flags.logOutput != "" {
		s.Logging.Output = flags.logOutput
	}
	if flags.debug {
		s.Logging.Level = "debug"
	}
	if override != nil {
		override(s)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(s.TelemetryConfig(version))
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	env := &environment{
		ctx:      tel.WithContext(cmd.Context()),
		settings: s,
		tel:      tel,
		logger:   tel.Logger.NewComponentLogger(cmd.Name()),
	}
	if path != "" {
		env.logger.Debugf("Loaded settings from %s", path)
	}
	return env, nil
}

// openStore opens the concept store and brings its schema up to date.
// With memoryIfMissing, a database file that does not exist is replaced by
// an empty in-memory store rather than created.
func (e *environment) openStore(memoryIfMissing bool) (*stores.SQLiteStore, error) {
	path := e.settings.Database.Path
	if memoryIfMissing && path != stores.MemoryPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			e.logger.Debugf("Database %s does not exist, using an empty in-memory store", path)
			path = stores.MemoryPath
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{
		Path:         path,
		MaxOpenConns: e.settings.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(e.ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Migrate(e.ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	e.store = store
	return store, nil
}

// registry builds the registry of safe functions and macros: the
// similarity measures over store plus every configured plugin.
func (e *environment) registry(store stores.ConceptStore) (*config.Registry, error) {
	reg := config.NewRegistry()
	if err := config.RegisterMacros(reg); err != nil {
		return nil, err
	}
	if err := similarity.Register(reg, store); err != nil {
		return nil, err
	}

	loader := plugins.NewLoader(
		plugins.WithTimeout(e.settings.Plugins.Timeout()),
		plugins.WithLogger(e.logger.NewComponentLogger("plugins").Zerolog()),
	)
	loaded, err := loader.Register(e.ctx, reg, e.settings.Plugins.Dirs...)
	if err != nil {
		return nil, err
	}
	if len(loaded) > 0 {
		e.logger.Infof("Loaded %d plugins", len(loaded))
	}

	reg.Freeze()
	return reg, nil
}

// interpreter returns an interpreter over reg that logs and counts
// statements.
func (e *environment) interpreter(reg *config.Registry, opts ...config.Option) *config.Interpreter {
	opts = append([]config.Option{
		config.WithLogger(e.logger.NewComponentLogger("config").Zerolog()),
		config.WithStatementHook(func(kind string) {
			telemetry.RecordStatement(e.ctx, kind)
		}),
	}, opts...)
	return config.New(reg, opts...)
}

// interpret runs sources as one instrumented operation.
func (e *environment) interpret(in *config.Interpreter, sources []config.Source) (*config.Config, error) {
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name
	}

	op := telemetry.StartInterpret(e.ctx, names...)
	cfg, err := in.Interpret(sources...)
	op.End(err)
	if err != nil {
		return nil, err
	}
	op.Logger.Debugf("Interpreted %d sources in %s", len(sources), op.Timer.Duration())
	return cfg, nil
}

// Close releases the store and flushes telemetry.
func (e *environment) Close() error {
	var errs []error
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	errs = append(errs, e.tel.Shutdown(context.WithoutCancel(e.ctx)))
	return errors.Join(errs...)
}

// readSources reads the configuration files in order followed by the
// ad-hoc statements. Without files the configuration is read from stdin.
func readSources(paths, statements []string, stdin io.Reader) ([]config.Source, error) {
	var sources []config.Source
	if len(paths) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration from stdin: %w", err)
		}
		sources = append(sources, config.Source{Name: "<stdin>", Text: string(data)})
	}
	for _, path := range paths {
		src, err := config.FileSource(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	for _, stmt := range statements {
		sources = append(sources, config.CommandSource(stmt))
	}
	return sources, nil
}
