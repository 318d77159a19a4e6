package interp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/andrei-cloud/go_scriptbridge/internal/errorcodes"
)

// State is the lifecycle state of a Manager.
type State uint8

// Lifecycle states. Failed is only reachable from Initializing.
const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Settings name the module to load and configure the engine.
type Settings struct {
	Module    string
	Extension string
	Options
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = logger
	}
}

// WithExit replaces os.Exit for fatal double initialization.
func WithExit(exit func(int)) ManagerOption {
	return func(m *Manager) {
		m.exit = exit
	}
}

// Manager starts the engine and loads the plugin module exactly once.
// It is not safe for concurrent use; the plugin instance serializes calls.
type Manager struct {
	engine   Engine
	fs       afero.Fs
	settings Settings
	log      zerolog.Logger
	exit     func(int)

	state  State
	loaded Module
	err    error
}

// NewManager returns a manager that loads settings.Module from fsys using engine.
func NewManager(engine Engine, fsys afero.Fs, settings Settings, opts ...ManagerOption) *Manager {
	m := &Manager{
		engine:   engine,
		fs:       fsys,
		settings: settings,
		log:      zerolog.Nop(),
		exit:     os.Exit,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// EnsureReady returns the loaded module, starting the interpreter on first
// use. A failed startup is reported again on every call without a retry.
func (m *Manager) EnsureReady() (Module, error) {
	switch m.state {
	case StateReady:
		return m.loaded, nil
	case StateFailed:
		return nil, m.err
	case StateInitializing:
		return nil, m.fatal("initialization re-entered")
	}

	return m.startup()
}

// Initialize performs the host-driven initialization. Initializing an
// instance whose module is already loaded is fatal.
func (m *Manager) Initialize() (Module, error) {
	if m.loaded != nil || m.state == StateInitializing {
		return nil, m.fatal("module already loaded")
	}
	if m.state == StateFailed {
		return nil, m.err
	}

	return m.startup()
}

// Close releases the engine. The manager cannot be used afterwards.
func (m *Manager) Close() error {
	if m.state == StateFailed && errors.Is(m.err, ErrClosed) {
		return nil
	}
	m.loaded = nil
	m.state = StateFailed
	m.err = ErrClosed

	if err := m.engine.Close(); err != nil {
		return fmt.Errorf("close interpreter: %w", err)
	}

	return nil
}

func (m *Manager) startup() (Module, error) {
	m.state = StateInitializing
	s := m.settings

	m.log.Info().
		Str("event", "interpreter_start").
		Str("home", s.Home).
		Strs("search_path", s.SearchPath).
		Msg("starting interpreter")

	if err := m.engine.Start(s.Options); err != nil {
		return nil, m.fail(&InterpreterStartError{Err: err})
	}

	path, source, searched, err := m.resolve()
	if err != nil {
		return nil, m.fail(&ModuleLoadError{Name: s.Module, Searched: searched, Err: err})
	}

	m.log.Debug().
		Str("event", "module_resolved").
		Str("module", s.Module).
		Str("path", path).
		Int("size", len(source)).
		Msg("loading module")

	mod, err := m.engine.Load(path, source)
	if err != nil {
		return nil, m.fail(&ModuleLoadError{Name: s.Module, Path: path, Searched: searched, Err: err})
	}

	m.loaded = mod
	m.state = StateReady
	m.log.Info().
		Str("event", "module_loaded").
		Str("module", s.Module).
		Str("path", path).
		Msg("interpreter ready")

	return mod, nil
}

// resolve finds the module source. Each search path entry is tried as
// <dir>/<module><ext> and then <dir>/<module>/index<ext>.
func (m *Manager) resolve() (string, []byte, []string, error) {
	s := m.settings
	searched := make([]string, 0, 2*len(s.SearchPath))

	for _, dir := range s.SearchPath {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.Home, dir)
		}

		for _, candidate := range []string{
			filepath.Join(dir, s.Module+s.Extension),
			filepath.Join(dir, s.Module, "index"+s.Extension),
		} {
			searched = append(searched, candidate)

			info, err := m.fs.Stat(candidate)
			if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
				continue
			}
			if err != nil {
				return candidate, nil, searched, err
			}

			source, err := afero.ReadFile(m.fs, candidate)
			if err != nil {
				return candidate, nil, searched, err
			}

			return candidate, source, searched, nil
		}
	}

	return "", nil, searched, ErrModuleNotFound
}

func (m *Manager) fail(err error) error {
	m.state = StateFailed
	m.err = err
	m.log.Error().
		Err(err).
		Str("event", "interpreter_failed").
		Str("code", errorcodes.Code(err)).
		Msg("interpreter initialization failed")

	return err
}

func (m *Manager) fatal(reason string) error {
	err := fmt.Errorf("%s: %w", reason, errorcodes.ErrDoubleInitialization)
	m.log.Error().
		Err(err).
		Str("event", "double_initialization").
		Str("state", m.state.String()).
		Msg("interpreter initialized twice")
	m.exit(1)

	return err
}
