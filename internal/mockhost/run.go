package mockhost

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/lydakis/blenderbridge/internal/config"
	"github.com/lydakis/blenderbridge/internal/host"
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

// waitForSignal blocks until the process is asked to stop.
var waitForSignal = func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

// Run is the bridgehost entry point. Returns an exit code.
func Run(args []string) int {
	if handled, code := handleRootFlags(args); handled {
		return code
	}

	fs := flag.NewFlagSet("bridgehost", flag.ContinueOnError)
	fs.SetOutput(rootStderr)
	fs.Usage = func() { printRootHelp(rootStderr) }
	configPath := fs.String("config", "", "config file path")
	listenFlag := fs.String("listen", "", "listen address, overrides config")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn or error")
	tickFlag := fs.String("tick", "", "main-thread drain interval, for example 50ms")
	queueFlag := fs.Int("queue", 0, "main-thread queue size, overrides config")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(rootStderr, "bridgehost: unexpected argument: %s\n", fs.Arg(0))
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(rootStderr, "bridgehost: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *listenFlag != "" {
		cfg.Host.Listen = *listenFlag
	}
	if *tickFlag != "" {
		cfg.Host.Tick = *tickFlag
	}
	if *queueFlag != 0 {
		cfg.Host.QueueSize = *queueFlag
	}
	if verr := config.Validate(cfg); verr != nil {
		fmt.Fprintf(rootStderr, "bridgehost: invalid config: %v\n", verr)
		return 2
	}

	log := slog.New(slog.NewTextHandler(rootStderr, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.Log.Level),
	}))

	listen := cfg.Host.Listen
	if listen == "" {
		listen = host.DefaultListen
	}

	h, err := New(cfg, listen, log)
	if err != nil {
		fmt.Fprintf(rootStderr, "bridgehost: %v\n", err)
		return 1
	}
	if err := h.Start(); err != nil {
		fmt.Fprintf(rootStderr, "bridgehost: %v\n", err)
		return 1
	}
	defer h.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		waitForSignal()
		log.Info("shutting down")
		cancel()
	}()

	h.Serve(ctx)
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
		fmt.Fprintf(rootStdout, "bridgehost %s\n", buildVersion)
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
	fmt.Fprintln(out, "  bridgehost [FLAGS]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Runs a stand-in Blender host: a command socket serving the full")
	fmt.Fprintln(out, "tool surface against an in-memory scene.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Flags:")
	fmt.Fprintln(out, "  -config PATH      Config file (default "+paths.ConfigFile()+")")
	fmt.Fprintln(out, "  -listen ADDR      Listen address (default "+host.DefaultListen+")")
	fmt.Fprintln(out, "  -log-level LEVEL  debug, info, warn or error")
	fmt.Fprintln(out, "  -tick DURATION    Main-thread drain interval, for example 50ms")
	fmt.Fprintln(out, "  -queue N          Main-thread queue size")
	fmt.Fprintln(out, "  --help, -h        Show help")
	fmt.Fprintln(out, "  --version, -V     Show version")
}
