package gateway

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/lydakis/blenderbridge/internal/config"
	"github.com/lydakis/blenderbridge/internal/paths"
)

var (
	rootStdout   io.Writer = os.Stdout
	rootStderr   io.Writer = os.Stderr
	buildVersion           = "dev"
)

func init() {
	buildVersion = resolveBuildVersion(buildVersion)
}

// Run is the gateway entry point. Returns an exit code.
func Run(args []string) int {
	if handled, code := handleRootFlags(args); handled {
		return code
	}

	fs := flag.NewFlagSet("blenderbridge", flag.ContinueOnError)
	fs.SetOutput(rootStderr)
	fs.Usage = func() { printRootHelp(rootStderr) }
	configPath := fs.String("config", "", "config file path")
	hostFlag := fs.String("host", "", "host address, overrides config and BLENDER_HOST")
	portFlag := fs.Int("port", 0, "host port, overrides config and BLENDER_PORT")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(rootStderr, "blenderbridge: unexpected argument: %s\n", fs.Arg(0))
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(rootStderr, "blenderbridge: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if verr := config.Validate(cfg); verr != nil {
		fmt.Fprintf(rootStderr, "blenderbridge: invalid config: %v\n", verr)
		return 2
	}

	// MCP owns stdout, so all logging goes to stderr.
	log := slog.New(slog.NewTextHandler(rootStderr, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.Log.Level),
	}))

	host, port := cfg.Bridge.Endpoint()
	if *hostFlag != "" {
		host = *hostFlag
	}
	if *portFlag != 0 {
		port = *portFlag
	}

	g := New(cfg, host, port, log)
	if err := g.Serve(context.Background()); err != nil {
		fmt.Fprintf(rootStderr, "blenderbridge: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func handleRootFlags(args []string) (bool, int) {
	if len(args) != 1 {
		return false, 0
	}

	switch args[0] {
	case "--version", "-V":
		fmt.Fprintf(rootStdout, "blenderbridge %s\n", buildVersion)
		return true, 0
	case "--help", "-h":
		printRootHelp(rootStdout)
		return true, 0
	default:
		return false, 0
	}
}

func resolveBuildVersion(defaultVersion string) string {
	if defaultVersion != "" && defaultVersion != "dev" {
		return defaultVersion
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return defaultVersion
	}
	if info.Main.Version == "" || info.Main.Version == "(devel)" {
		return defaultVersion
	}
	return info.Main.Version
}

func printRootHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  blenderbridge [FLAGS]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Serves Blender tools to an MCP client on stdin/stdout and relays")
	fmt.Fprintln(out, "them to the addon socket.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Flags:")
	fmt.Fprintln(out, "  -config PATH      Config file (default "+paths.ConfigFile()+")")
	fmt.Fprintln(out, "  -host ADDR        Host address, overrides config and BLENDER_HOST")
	fmt.Fprintln(out, "  -port PORT        Host port, overrides config and BLENDER_PORT")
	fmt.Fprintln(out, "  -log-level LEVEL  debug, info, warn or error")
	fmt.Fprintln(out, "  --help, -h        Show help")
	fmt.Fprintln(out, "  --version, -V     Show version")
}
