// Package plugins loads Starlark plugin scripts and registers the
// functions they export as safe functions of the configuration language.
//
// Every *.star file of a plugin directory whose name does not start with
// "_" is executed once. Each global callable whose name does not start with
// "_" becomes a safe function under that name. Plugins see the safe
// functions registered before them, plus struct, math and json:
//
//	# exact.star
//	def _compare(one, two):
//	    return 1.0 if one == two else 0.0
//
//	def exact():
//	    return struct(compare = _compare, void = 0.0)
package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/mossy/mossy/pkg/config"
)

// Plugin is one executed plugin file.
type Plugin struct {
	Name      string
	Path      string
	Functions map[string]starlark.Callable
	LoadTime  time.Duration
}

// FunctionNames returns the exported function names in sorted order.
func (p *Plugin) FunctionNames() []string {
	names := make([]string, 0, len(p.Functions))
	for name := range p.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Loader executes plugin files.
type Loader struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithTimeout bounds the execution time of each plugin file.
func WithTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = d
	}
}

// WithLogger sets the logger used to report loaded plugins.
func WithLogger(logger zerolog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a plugin loader with a default timeout of 30 seconds.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		timeout: 30 * time.Second,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register loads every plugin of dirs in order and registers its functions
// in reg. Directories that do not exist are skipped.
func (l *Loader) Register(ctx context.Context, reg *config.Registry, dirs ...string) ([]*Plugin, error) {
	var loaded []*Plugin
	for _, dir := range dirs {
		files, err := Files(dir)
		if err != nil {
			return loaded, err
		}
		for _, path := range files {
			p, err := l.LoadFile(ctx, path, predeclared(reg))
			if err != nil {
				return loaded, err
			}
			for _, name := range p.FunctionNames() {
				if err := reg.RegisterFunction(name, p.Functions[name]); err != nil {
					return loaded, fmt.Errorf("plugin %s: %w", p.Path, err)
				}
			}
			l.logger.Debug().
				Str("plugin", p.Name).
				Strs("functions", p.FunctionNames()).
				Dur("load_time", p.LoadTime).
				Msg("Plugin loaded")
			loaded = append(loaded, p)
		}
	}
	return loaded, nil
}

// Files lists the plugin files of dir in name order.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plugin directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".star") || strings.HasPrefix(name, "_") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}

// LoadFile executes one plugin file with env as its predeclared names.
func (l *Loader) LoadFile(ctx context.Context, path string, env starlark.StringDict) (*Plugin, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin: %w", err)
	}

	startTime := time.Now()
	name := strings.TrimSuffix(filepath.Base(path), ".star")

	evalCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	thread := &starlark.Thread{
		Name: "plugin:" + name,
		Print: func(_ *starlark.Thread, msg string) {
			l.logger.Debug().Str("plugin", name).Msg(msg)
		},
	}
	stop := context.AfterFunc(evalCtx, func() {
		thread.Cancel(evalCtx.Err().Error())
	})
	defer stop()

	globals, err := starlark.ExecFile(thread, path, src, env)
	if err != nil {
		if evalCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("plugin %s: execution timeout after %v", path, l.timeout)
		}
		return nil, fmt.Errorf("plugin %s: %w", path, err)
	}

	p := &Plugin{
		Name:      name,
		Path:      path,
		Functions: make(map[string]starlark.Callable),
		LoadTime:  time.Since(startTime),
	}
	for gname, val := range globals {
		// Skip internal names (starting with _)
		if strings.HasPrefix(gname, "_") {
			continue
		}
		if fn, ok := val.(starlark.Callable); ok {
			p.Functions[gname] = fn
		}
	}
	return p, nil
}

// predeclared returns the names visible to plugins: the library modules
// and the safe functions of reg.
func predeclared(reg *config.Registry) starlark.StringDict {
	env := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"math":   starlarkmath.Module,
		"json":   json.Module,
	}
	for _, name := range reg.Functions() {
		if fn, ok := reg.Function(name); ok {
			env[name] = fn
		}
	}
	return env
}
