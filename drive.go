package litdrive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is the sleep between backend checks while Get waits
// for a path to appear.
const DefaultPollInterval = 500 * time.Millisecond

// Drive is a handle on a named, logically shared storage space. Workers
// publish files into it with Put and retrieve files published by other
// workers with Get, without any direct connection between the workers.
//
// Within a drive, every writer owns an exclusive sub-namespace keyed by its
// component name. Reads may cross sub-namespaces freely.
//
// A handle is owned by a single worker; its methods may be called from
// multiple goroutines of that worker, but BindComponent and SetRootFolder
// must not race with operations.
type Drive struct {
	identity        Identity
	allowDuplicates bool
	rootFolder      string
	componentName   string

	backend      Backend
	registry     *Registry
	guard        ContextGuard
	logger       *logrus.Logger
	pollInterval time.Duration
}

// Option is a Drive configuration option.
type Option func(*Drive)

// AllowDuplicates lets several components publish the same relative path.
// Retrieval then has to disambiguate via FromComponent.
func AllowDuplicates(allow bool) Option {
	return func(d *Drive) {
		d.allowDuplicates = allow
	}
}

// WithRootFolder sets the local working directory files are put from and
// got into. Defaults to the current working directory.
func WithRootFolder(dir string) Option {
	return func(d *Drive) {
		d.rootFolder = dir
	}
}

// WithBackend injects the storage backend directly, bypassing the registry.
func WithBackend(b Backend) Option {
	return func(d *Drive) {
		d.backend = b
	}
}

// WithRegistry resolves the backend from the given registry instead of
// DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(d *Drive) {
		d.registry = r
	}
}

// WithGuard sets the execution context guard consulted before every
// operation. Defaults to Worker.
func WithGuard(g ContextGuard) Option {
	return func(d *Drive) {
		d.guard = g
	}
}

// WithLogger sets the logger. Defaults to logrus.StandardLogger().
func WithLogger(l *logrus.Logger) Option {
	return func(d *Drive) {
		d.logger = l
	}
}

// WithPollInterval sets the sleep between backend checks while Get waits
// for a path to appear.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Drive) {
		d.pollInterval = interval
	}
}

// New parses the raw identifier ("<protocol>://<id>") and returns a handle
// on the drive it names. The handle has no component name bound yet; the
// owning worker (or its framework) binds one with BindComponent before
// mutating the drive.
func New(rawIdentifier string, options ...Option) (*Drive, error) {
	identity, err := ParseIdentity(rawIdentifier)
	if err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine working directory: %w", err)
	}

	d := &Drive{
		identity:     identity,
		rootFolder:   wd,
		guard:        Worker,
		logger:       logrus.StandardLogger(),
		pollInterval: DefaultPollInterval,
	}

	for _, opt := range options {
		opt(d)
	}

	return d, nil
}

// Identity returns the drive's identity.
func (d *Drive) Identity() Identity {
	return d.identity
}

// Protocol returns the identity's protocol, including the "://" suffix.
func (d *Drive) Protocol() string {
	return d.identity.Protocol
}

// ID returns the identity's id.
func (d *Drive) ID() string {
	return d.identity.ID
}

// AllowsDuplicates reports whether several components may publish the same
// relative path.
func (d *Drive) AllowsDuplicates() bool {
	return d.allowDuplicates
}

// RootFolder returns the local working directory.
func (d *Drive) RootFolder() string {
	return d.rootFolder
}

// SetRootFolder rebinds the local working directory.
func (d *Drive) SetRootFolder(dir string) {
	d.rootFolder = dir
}

// ComponentName returns the component name bound to this handle, or the
// empty string if none is bound yet.
func (d *Drive) ComponentName() string {
	return d.componentName
}

// BindComponent binds this handle to the logical name of the worker that
// owns it. Put and Delete operate on that component's sub-namespace.
func (d *Drive) BindComponent(name string) {
	d.componentName = name
}

// Equal reports whether two handles refer to the same logical drive.
// Only the identity counts; root folder, component name and policy flags
// are session state.
func (d *Drive) Equal(other *Drive) bool {
	return other != nil && d.identity == other.identity
}

// Copy returns a new handle on the same drive with the same session state.
func (d *Drive) Copy() *Drive {
	c := *d
	return &c
}

// String returns the raw identifier of the drive.
func (d *Drive) String() string {
	return d.identity.String()
}

// resolveBackend returns the injected backend or resolves one from the
// registry (which caches per identity, so repeated calls are cheap).
func (d *Drive) resolveBackend(ctx context.Context) (Backend, error) {
	if d.backend != nil {
		return d.backend, nil
	}

	registry := d.registry
	if registry == nil {
		registry = DefaultRegistry
	}

	return registry.Backend(ctx, d.identity)
}

// Put publishes the file or directory at relativePath (resolved against the
// root folder) into the caller's component namespace. A directory is
// published with its full subtree.
//
// Unless the drive allows duplicates, a path already published by another
// component fails with a DuplicateFileError; re-publishing one's own path is
// idempotent. The duplicate check is list-then-put and therefore best
// effort: two components racing the very first publication of a path can
// both succeed.
func (d *Drive) Put(ctx context.Context, relativePath string) error {
	if d.guard.IsCoordinator() {
		return ContextError{Op: OpPut}
	}
	if d.componentName == "" {
		return MissingOwnerError{Op: OpPut}
	}

	rel, err := normalizeRel(relativePath)
	if err != nil {
		return err
	}

	backend, err := d.resolveBackend(ctx)
	if err != nil {
		return err
	}

	files, err := d.localFiles(rel)
	if err != nil {
		return err
	}

	if !d.allowDuplicates {
		index, err := ownerIndex(ctx, backend)
		if err != nil {
			return err
		}

		for _, file := range files {
			for _, component := range index[file] {
				if component != d.componentName {
					return DuplicateFileError{Path: file, Component: component}
				}
			}
		}
	}

	var uploaded []string
	for _, file := range files {
		b, err := os.ReadFile(filepath.Join(d.rootFolder, filepath.FromSlash(file)))
		if err == nil {
			err = backend.Put(ctx, backendKey(d.componentName, file), b)
		}
		if err != nil {
			// Roll back so a failed put leaves nothing half-visible.
			for _, u := range uploaded {
				if derr := backend.Delete(ctx, backendKey(d.componentName, u)); derr != nil {
					d.logger.Warnf("drive %s: rollback of %s failed: %v", d.identity, u, derr)
				}
			}
			return fmt.Errorf("put %s: %w", file, err)
		}
		uploaded = append(uploaded, file)
	}

	d.logger.Debugf("drive %s: %s put %d file(s) under %s", d.identity, d.componentName, len(files), relativePath)

	return nil
}

// ListOption is a List configuration option.
type ListOption func(*listConfig)

type listConfig struct {
	component string
}

// InComponent scopes the listing to a single component namespace.
func InComponent(name string) ListOption {
	return func(cfg *listConfig) {
		cfg.component = name
	}
}

// List returns the relative paths stored below prefix, aggregated across all
// component namespaces (or scoped to one via InComponent). The result is
// sorted and deduplicated; an empty result is an empty slice, not an error.
func (d *Drive) List(ctx context.Context, prefix string, options ...ListOption) ([]string, error) {
	if d.guard.IsCoordinator() {
		return nil, ContextError{Op: OpList}
	}

	var cfg listConfig
	for _, opt := range options {
		opt(&cfg)
	}

	rel, err := normalizeRel(prefix)
	if err != nil {
		return nil, err
	}

	backend, err := d.resolveBackend(ctx)
	if err != nil {
		return nil, err
	}

	keys, err := backend.List(ctx, cfg.component)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, key := range keys {
		component, stored, ok := splitKey(key)
		if !ok {
			continue
		}
		if cfg.component != "" && component != cfg.component {
			continue
		}
		if matchesRel(stored, rel) {
			set[stored] = struct{}{}
		}
	}

	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	return paths, nil
}

// Delete removes relativePath from the caller's own component namespace.
// It never touches other components' namespaces: if the path only exists
// under another component, Delete fails with a NotFoundError naming the
// caller's namespace.
func (d *Drive) Delete(ctx context.Context, relativePath string) error {
	if d.guard.IsCoordinator() {
		return ContextError{Op: OpDelete}
	}
	if d.componentName == "" {
		return MissingOwnerError{Op: OpDelete}
	}

	rel, err := normalizeRel(relativePath)
	if err != nil {
		return err
	}

	backend, err := d.resolveBackend(ctx)
	if err != nil {
		return err
	}

	files, err := namespaceFiles(ctx, backend, d.componentName, rel)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return NotFoundError{Path: rel, Namespace: d.componentName}
	}

	for _, file := range files {
		if err := backend.Delete(ctx, backendKey(d.componentName, file)); err != nil {
			return fmt.Errorf("delete %s: %w", file, err)
		}
	}

	d.logger.Debugf("drive %s: %s deleted %d file(s) under %s", d.identity, d.componentName, len(files), relativePath)

	return nil
}

// GetOption is a Get configuration option.
type GetOption func(*getConfig)

type getConfig struct {
	component string
	timeout   time.Duration
	overwrite bool
}

// FromComponent pins the component namespace the file is retrieved from.
func FromComponent(name string) GetOption {
	return func(cfg *getConfig) {
		cfg.component = name
	}
}

// WithTimeout makes Get poll the backend until the path becomes resolvable
// or the timeout elapses. Without it, Get fails immediately when the path
// is absent.
func WithTimeout(timeout time.Duration) GetOption {
	return func(cfg *getConfig) {
		cfg.timeout = timeout
	}
}

// Overwrite lets Get replace an existing local destination.
func Overwrite(overwrite bool) GetOption {
	return func(cfg *getConfig) {
		cfg.overwrite = overwrite
	}
}

// Get retrieves relativePath into the root folder.
//
// The source namespace is the one pinned via FromComponent, or resolved by
// searching all namespaces. A path held by several components fails with an
// AmbiguousSourceError; a path held by none fails with a NotFoundError. With
// WithTimeout, both conditions are polled until they resolve or the timeout
// elapses — a producer that has simply not published yet is waited for.
//
// An existing local destination fails with an AlreadyExistsError unless
// Overwrite(true) is passed. The backend is never mutated by Get.
func (d *Drive) Get(ctx context.Context, relativePath string, options ...GetOption) error {
	if d.guard.IsCoordinator() {
		return ContextError{Op: OpGet}
	}

	var cfg getConfig
	for _, opt := range options {
		opt(&cfg)
	}

	rel, err := normalizeRel(relativePath)
	if err != nil {
		return err
	}

	backend, err := d.resolveBackend(ctx)
	if err != nil {
		return err
	}

	component, err := d.resolveSource(ctx, backend, rel, cfg)
	if err != nil {
		return err
	}

	if err := d.materialize(ctx, backend, component, rel, cfg.overwrite); err != nil {
		return err
	}

	d.logger.Debugf("drive %s: got %s from %s", d.identity, relativePath, component)

	return nil
}

// resolveSource narrows the component namespaces holding rel down to one,
// polling while a timeout budget remains.
func (d *Drive) resolveSource(ctx context.Context, backend Backend, rel string, cfg getConfig) (string, error) {
	deadline := time.Now().Add(cfg.timeout)

	for {
		components, err := owners(ctx, backend, rel, cfg.component)
		if err != nil {
			return "", err
		}

		switch len(components) {
		case 1:
			return components[0], nil
		case 0:
			if cfg.timeout <= 0 {
				return "", NotFoundError{Path: rel, Namespace: cfg.component}
			}
			if time.Now().After(deadline) {
				return "", NotFoundError{Path: rel, Namespace: cfg.component, Waited: cfg.timeout}
			}
		default:
			if cfg.timeout <= 0 || time.Now().After(deadline) {
				return "", AmbiguousSourceError{Path: rel, Components: components}
			}
		}

		d.logger.Debugf("drive %s: waiting for %s (%d candidate namespaces)", d.identity, rel, len(components))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(d.pollInterval):
		}
	}
}

// materialize fetches rel from one component namespace into the root
// folder. Content is staged into a temporary directory first so a failed
// fetch never leaves a partially written destination.
func (d *Drive) materialize(ctx context.Context, backend Backend, component, rel string, overwrite bool) error {
	files, err := namespaceFiles(ctx, backend, component, rel)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		// The source vanished between resolution and fetch.
		return NotFoundError{Path: rel, Namespace: component}
	}

	dest := filepath.Join(d.rootFolder, filepath.FromSlash(rel))

	if rel == "" {
		// The destination is the root folder itself, which always exists.
		// Collisions are checked per file and the staged tree is merged in
		// file by file; the root folder is never removed.
		for _, file := range files {
			target := filepath.Join(d.rootFolder, filepath.FromSlash(file))
			if _, err := os.Stat(target); err == nil {
				if !overwrite {
					return AlreadyExistsError{Path: file}
				}
			} else if !os.IsNotExist(err) {
				return err
			}
		}
	} else {
		if _, err := os.Stat(dest); err == nil {
			if !overwrite {
				return AlreadyExistsError{Path: rel}
			}
		} else if !os.IsNotExist(err) {
			return err
		}
	}

	staging, err := os.MkdirTemp(d.rootFolder, ".litdrive-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, file := range files {
		b, err := backend.Get(ctx, backendKey(component, file))
		if err != nil {
			return fmt.Errorf("get %s: %w", file, err)
		}

		target := filepath.Join(staging, filepath.FromSlash(file))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, b, 0o644); err != nil {
			return err
		}
	}

	if rel == "" {
		for _, file := range files {
			target := filepath.Join(d.rootFolder, filepath.FromSlash(file))
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Rename(filepath.Join(staging, filepath.FromSlash(file)), target); err != nil {
				return err
			}
		}
		return nil
	}

	if overwrite {
		if err := os.RemoveAll(dest); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	return os.Rename(filepath.Join(staging, filepath.FromSlash(rel)), dest)
}

// localFiles resolves rel against the root folder and returns the relative
// paths of the files to publish: rel itself for a file, the full subtree
// for a directory.
func (d *Drive) localFiles(rel string) ([]string, error) {
	src := filepath.Join(d.rootFolder, filepath.FromSlash(rel))

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rel, err)
	}

	if !info.IsDir() {
		return []string{rel}, nil
	}

	var files []string
	err = filepath.WalkDir(src, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		sub, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}

		files = append(files, path.Join(rel, filepath.ToSlash(sub)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)

	return files, nil
}
