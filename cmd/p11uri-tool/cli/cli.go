package cli

import (
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/crypto11"
	"github.com/effective-security/pkcs11uri/cryptoprov"
	"github.com/effective-security/pkcs11uri/uri"
	"github.com/effective-security/x/ctl"
	"github.com/effective-security/x/print"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/pkcs11uri", "cli")

// Cli provides CLI context to run commands
type Cli struct {
	Version ctl.VersionFlag `name:"version" help:"Print version information and quit" hidden:""`

	Cfg       string   `help:"Location of token config file, used when the URI does not specify the module" type:"path"`
	SearchDir []string `help:"Folders to search for module-name" default:"/usr/local/lib,/usr/lib,/usr/lib/pkcs11,/usr/local/lib/softhsm,/usr/lib/softhsm"`
	Debug     bool     `short:"D" help:"Enable debug mode"`
	LogLevel  string   `short:"l" help:"Set the logging level (debug|info|warn|error)" default:"error"`

	// Stdin is the source to read from, typically set to os.Stdin
	stdin io.Reader
	// Output is the destination for all output from the command, typically set to os.Stdout
	output io.Writer
	// ErrOutput is the destinaton for errors.
	// If not set, errors will be written to os.StdError
	errOutput io.Writer

	module *crypto11.Module
	// pin from the token config
	pin string
}

// Reader is the source to read from, typically set to os.Stdin
func (c *Cli) Reader() io.Reader {
	if c.stdin != nil {
		return c.stdin
	}
	return os.Stdin
}

// WithReader allows to specify a custom reader
func (c *Cli) WithReader(reader io.Reader) *Cli {
	c.stdin = reader
	return c
}

// Writer returns a writer for control output
func (c *Cli) Writer() io.Writer {
	if c.output != nil {
		return c.output
	}
	return os.Stdout
}

// WithWriter allows to specify a custom writer
func (c *Cli) WithWriter(out io.Writer) *Cli {
	c.output = out
	return c
}

// ErrWriter returns a writer for control output
func (c *Cli) ErrWriter() io.Writer {
	if c.errOutput != nil {
		return c.errOutput
	}
	return os.Stderr
}

// WithErrWriter allows to specify a custom error writer
func (c *Cli) WithErrWriter(out io.Writer) *Cli {
	c.errOutput = out
	return c
}

// AfterApply hook sets the log level
func (c *Cli) AfterApply(app *kong.Kong, vars kong.Vars) error {
	if c.Debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		val := strings.TrimLeft(c.LogLevel, "=")
		l, err := xlog.ParseLevel(strings.ToUpper(val))
		if err != nil {
			return errors.WithStack(err)
		}
		xlog.SetGlobalLogLevel(l)
	}

	return nil
}

// WriteJSON prints response to out
func (c *Cli) WriteJSON(value any) {
	print.JSON(c.Writer(), value)
}

// Module returns the loaded module and the parsed URI.
// The module is resolved from the module-path or module-name of the URI,
// or from the token config when --cfg is set. Without the URI argument,
// the token config URI is used.
func (c *Cli) Module(arg string) (*crypto11.Module, *uri.URI, error) {
	var (
		u   *uri.URI
		err error
	)
	if arg != "" {
		u, err = uri.Parse(arg)
		if err != nil {
			return nil, nil, err
		}
	}

	if c.module == nil {
		if c.Cfg != "" && (u == nil || !definesModule(u)) {
			cfg, err := cryptoprov.LoadTokenConfig(c.Cfg)
			if err != nil {
				return nil, nil, err
			}
			m, cfgURI, err := crypto11.LoadFromConfig(cfg)
			if err != nil {
				return nil, nil, err
			}
			c.module = m
			c.pin = cfg.Pin()
			if u == nil {
				u = cfgURI
			}
		} else {
			if u == nil {
				return nil, nil, errors.New("specify PKCS#11 URI or --cfg")
			}
			c.module, err = crypto11.LoadFromURI(u, c.SearchDir)
			if err != nil {
				return nil, nil, err
			}
		}
		logger.KV(xlog.DEBUG, "module", c.module.Path())
	}

	if u == nil {
		u, _ = uri.Parse(uri.Scheme)
	}
	return c.module, u, nil
}

// Pin returns the PIN specified by the URI, or the token config
func (c *Cli) Pin(u *uri.URI) (string, error) {
	pin, ok, err := crypto11.ResolvePin(u)
	if err != nil {
		return "", err
	}
	if ok {
		return pin, nil
	}
	return c.pin, nil
}

// Close releases the loaded module
func (c *Cli) Close() error {
	if c.module == nil {
		return nil
	}
	err := c.module.Close()
	c.module = nil
	return err
}

func definesModule(u *uri.URI) bool {
	_, hasPath := u.ModulePath()
	_, hasName := u.ModuleName()
	return hasPath || hasName
}
