package crypto11

import (
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/attribute"
	"github.com/effective-security/pkcs11uri/metricskey"
	"github.com/effective-security/pkcs11uri/uri"
	"github.com/effective-security/x/fileutil"
	"github.com/effective-security/xlog"
	"github.com/miekg/pkcs11"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/pkcs11uri", "crypto11")

// ErrModuleNotFound is returned when a module can not be resolved from a URI
var ErrModuleNotFound = errors.New("PKCS#11 module not found")

// Module is a loaded and initialized PKCS#11 module
type Module struct {
	path     string
	ctx      Ctx
	platform attribute.Platform
	// finalize is false when the library was initialized by someone else
	finalize bool

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Module
type Option func(*Module)

// WithPlatform overrides the CK_ULONG layout used to marshal attributes
func WithPlatform(p attribute.Platform) Option {
	return func(m *Module) {
		m.platform = p
	}
}

// Load opens and initializes the PKCS#11 library at path.
// The library is released if initialization fails.
func Load(path string, opts ...Option) (*Module, error) {
	defer metricskey.PerfModuleOperation.MeasureSince(time.Now(), "load")

	ctx := NewCtx(path)
	if ctx == nil {
		return nil, errors.Errorf("unable to load PKCS#11 module: %s", path)
	}

	m := &Module{
		path:     path,
		ctx:      ctx,
		platform: attribute.NativePlatform(),
		finalize: true,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := ctx.Initialize(); err != nil {
		if !isError(err, pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
			ctx.Destroy()
			return nil, errors.WithMessagef(err, "unable to initialize PKCS#11 module: %s", path)
		}
		logger.KV(xlog.NOTICE, "reason", "already_initialized", "path", path)
		m.finalize = false
	}

	logger.KV(xlog.DEBUG, "status", "loaded", "path", path)
	return m, nil
}

// LoadFromURI resolves the module named by module-path and module-name
// query attributes, and loads it
func LoadFromURI(u *uri.URI, searchDirs []string, opts ...Option) (*Module, error) {
	path, err := ModulePath(u, searchDirs)
	if err != nil {
		return nil, err
	}
	return Load(path, opts...)
}

// ModulePath returns the module file identified by the URI.
// module-path may name the library file, or a directory to search
// for module-name. Without module-path, module-name is searched in searchDirs.
func ModulePath(u *uri.URI, searchDirs []string) (string, error) {
	name, hasName := u.ModuleName()
	if hasName && (name == "" || strings.ContainsAny(name, `/\`)) {
		return "", errors.Errorf("invalid module-name: %q", name)
	}

	if path, ok := u.ModulePath(); ok {
		if fileutil.FolderExists(path) != nil {
			if err := fileutil.FileExists(path); err != nil {
				return "", errors.Mark(errors.WithMessage(err, "module-path"), ErrModuleNotFound)
			}
			return path, nil
		}
		if !hasName {
			return "", errors.Errorf("module-name is required when module-path is a directory: %s", path)
		}
		searchDirs = []string{path}
	} else if !hasName {
		return "", errors.Mark(errors.New("URI does not specify module-path or module-name"), ErrModuleNotFound)
	}

	for _, dir := range searchDirs {
		for _, candidate := range moduleFileNames(name) {
			file := filepath.Join(dir, candidate)
			if fileutil.FileExists(file) == nil {
				logger.KV(xlog.DEBUG, "module", name, "resolved", file)
				return file, nil
			}
		}
	}
	return "", errors.Mark(errors.Newf("module %q not found in %v", name, searchDirs), ErrModuleNotFound)
}

func moduleFileNames(name string) []string {
	ext := ".so"
	switch runtime.GOOS {
	case "windows":
		ext = ".dll"
	case "darwin":
		ext = ".dylib"
	}
	names := []string{name}
	if !strings.HasSuffix(name, ext) {
		names = append(names, name+ext)
		if !strings.HasPrefix(name, "lib") {
			names = append(names, "lib"+name+ext)
		}
	}
	return names
}

// Path returns the location of the library
func (m *Module) Path() string {
	return m.path
}

// Platform returns the CK_ULONG layout of the module
func (m *Module) Platform() attribute.Platform {
	return m.platform
}

// Close finalizes and releases the library; it is safe to call more than once
func (m *Module) Close() error {
	m.closeOnce.Do(func() {
		if m.finalize {
			if err := m.ctx.Finalize(); err != nil {
				m.closeErr = errors.WithMessagef(err, "Finalize: %s", m.path)
			}
		}
		m.ctx.Destroy()
		logger.KV(xlog.DEBUG, "status", "closed", "path", m.path)
	})
	return m.closeErr
}

// Info returns the library information
func (m *Module) Info() (pkcs11.Info, error) {
	defer metricskey.PerfModuleOperation.MeasureSince(time.Now(), "info")

	info, err := m.ctx.GetInfo()
	if err != nil {
		return info, errors.WithMessage(err, "GetInfo")
	}
	return info, nil
}

func isError(err error, rv uint) bool {
	var perr pkcs11.Error
	return errors.As(err, &perr) && uint(perr) == rv
}

// trimPadding removes the blank padding of fixed-width PKCS#11 strings
func trimPadding(s string) string {
	return strings.TrimRight(s, " \x00")
}
