package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/effective-security/pkcs11uri/cmd/p11uri-tool/cli"
	"github.com/effective-security/pkcs11uri/internal/version"
	"github.com/effective-security/x/ctl"
)

type app struct {
	cli.Cli

	URI     cli.URICmd     `cmd:"" name:"uri" help:"PKCS#11 URI commands"`
	Module  cli.ModuleCmd  `cmd:"" help:"print PKCS#11 module information"`
	Slots   cli.SlotsCmd   `cmd:"" help:"list slots matching PKCS#11 URI"`
	Objects cli.ObjectsCmd `cmd:"" help:"list objects matching PKCS#11 URI"`
}

func main() {
	realMain(os.Args, os.Stdout, os.Stderr, os.Exit)
}

func realMain(args []string, out io.Writer, errout io.Writer, exit func(int)) {
	cl := app{
		Cli: cli.Cli{},
	}
	cl.Cli.WithErrWriter(errout).
		WithWriter(out)

	parser, err := kong.New(&cl,
		kong.Name("p11uri-tool"),
		kong.Description("CLI tool for PKCS#11 URI"),
		kong.Writers(out, errout),
		kong.Exit(exit),
		ctl.BoolPtrMapper,
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version.Current().String(),
		})
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args[1:])
	parser.FatalIfErrorf(err)

	if ctx != nil {
		defer cl.Cli.Close()

		if cl.Debug {
			// in DEBUG more print command line
			_, _ = fmt.Fprintf(ctx.Stdout, "#\n# %s\n#\n", strings.Join(args, " "))
		}
		err = ctx.Run(&cl.Cli)
		ctx.FatalIfErrorf(err)
	}
}
