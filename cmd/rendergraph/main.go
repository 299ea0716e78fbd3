package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hanpama/rendergraph/internal/compiler"
	"github.com/hanpama/rendergraph/internal/eventbus"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/otel"
	"github.com/hanpama/rendergraph/internal/planpb"
	"github.com/hanpama/rendergraph/internal/server"
)

const rootUsage = `rendergraph: frame graph compiler

USAGE:
  rendergraph <command> [flags]

COMMANDS:
  compile          Compile a graph description into an execution plan
  check            Validate a graph description without lowering it
  proto-schema     Print the protobuf schema of encoded plans
  serve            Run the HTTP compile service
  help             Show help for any command
`

const compileUsage = `compile FLAGS:
  -graph.root <dir>       Graph description root (default: .)
  -graph.entry <name>     Entry package (required)
  -out <file>             Write the plan to file (default: stdout)
  -format json|proto      Output encoding (default: json)
  -pretty                 Indent JSON output
  -v                      Log every stage at debug level
`

const checkUsage = `check FLAGS:
  -graph.root <dir>       Graph description root (default: .)
  -graph.entry <name>     Entry package (required)
  -v                      Log at debug level
  (Exits non-zero when violations are found)
`

const protoSchemaUsage = `proto-schema FLAGS:
  -out <file>             Write plan.proto to file (default: stdout)
`

const serveUsage = `serve FLAGS:
  -graph.root <dir>                 Directory of packages posted descriptions may import
  -server.addr <addr>               HTTP listen address (default: :8080)
  -server.pretty                    Pretty-print JSON responses
  -server.timeout <duration>        Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body-bytes <n>        Request body limit in bytes (default: 1048576)
  -server.cors-origin <origin>      Allowed CORS origin. Repeatable
  -otel.endpoint <addr>             OTLP collector endpoint
  -otel.service <name>              OpenTelemetry service name (default: rendergraph)
  -v                                Log at debug level
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("rendergraph", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "compile":
		return cmdCompile(cmdArgs, stdout, stderr)
	case "check":
		return cmdCheck(cmdArgs, stdout, stderr)
	case "proto-schema":
		return cmdProtoSchema(cmdArgs, stdout, stderr)
	case "serve":
		return cmdServe(cmdArgs, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "compile":
		fmt.Fprint(stdout, compileUsage)
	case "check":
		fmt.Fprint(stdout, checkUsage)
	case "proto-schema":
		fmt.Fprint(stdout, protoSchemaUsage)
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// reportViolations prints one line per violation and summarizes them in the
// returned error. Other errors are returned unchanged.
func reportViolations(err error, stderr io.Writer) error {
	var verr ir.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	for _, v := range verr {
		fmt.Fprintln(stderr, v.String())
	}
	return fmt.Errorf("%d violation(s) found", len(verr))
}

func writeOutput(outFile string, data []byte, stdout io.Writer) error {
	if outFile == "" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(outFile, data, 0644)
}

func cmdCompile(args []string, stdout, stderr io.Writer) error {
	rootDir := "."
	entry := ""
	outFile := ""
	format := "json"
	pretty := false
	verbose := false
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&rootDir, "graph.root", rootDir, "Graph description root")
	fs.StringVar(&entry, "graph.entry", entry, "Entry package")
	fs.StringVar(&outFile, "out", outFile, "Write the plan to file")
	fs.StringVar(&format, "format", format, "Output encoding")
	fs.BoolVar(&pretty, "pretty", pretty, "Indent JSON output")
	fs.BoolVar(&verbose, "v", verbose, "Log at debug level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, compileUsage)
		return err
	}
	if entry == "" {
		fmt.Fprint(stderr, compileUsage)
		return fmt.Errorf("-graph.entry is required")
	}
	if format != "json" && format != "proto" {
		fmt.Fprint(stderr, compileUsage)
		return fmt.Errorf("unknown format %q", format)
	}

	ctx := context.Background()
	disc, err := ir.NewFileSystemDiscovery(ctx, rootDir)
	if err != nil {
		return fmt.Errorf("discover packages: %w", err)
	}
	plan, err := compiler.Compile(ctx, disc, entry, compiler.WithLogger(newLogger(stderr, verbose)))
	if err != nil {
		return reportViolations(err, stderr)
	}

	var data []byte
	switch format {
	case "proto":
		data, err = planpb.Encode(plan)
	case "json":
		if pretty {
			data, err = json.MarshalIndent(plan, "", "  ")
		} else {
			data, err = json.Marshal(plan)
		}
		data = append(data, '\n')
	default:
		panic("unreachable")
	}
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return writeOutput(outFile, data, stdout)
}

func cmdCheck(args []string, stdout, stderr io.Writer) error {
	rootDir := "."
	entry := ""
	verbose := false
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&rootDir, "graph.root", rootDir, "Graph description root")
	fs.StringVar(&entry, "graph.entry", entry, "Entry package")
	fs.BoolVar(&verbose, "v", verbose, "Log at debug level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, checkUsage)
		return err
	}
	if entry == "" {
		fmt.Fprint(stderr, checkUsage)
		return fmt.Errorf("-graph.entry is required")
	}

	ctx := context.Background()
	disc, err := ir.NewFileSystemDiscovery(ctx, rootDir)
	if err != nil {
		return fmt.Errorf("discover packages: %w", err)
	}
	g, err := compiler.Check(ctx, disc, entry, compiler.WithLogger(newLogger(stderr, verbose)))
	if err != nil {
		return reportViolations(err, stderr)
	}
	fmt.Fprintf(stdout, "%s: %d operation(s), %d connection(s), %d package(s)\n",
		entry, len(g.Operations), len(g.Connections), len(g.Packages))
	return nil
}

func cmdProtoSchema(args []string, stdout, stderr io.Writer) error {
	outFile := ""
	fs := flag.NewFlagSet("proto-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write plan.proto to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, protoSchemaUsage)
		return err
	}
	var buf bytes.Buffer
	if err := planpb.Render(&buf); err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	return writeOutput(outFile, buf.Bytes(), stdout)
}

func cmdServe(args []string, stderr io.Writer) error {
	rootDir := ""
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	maxBody := int64(1 << 20)
	verbose := false
	otelEndpoint := ""
	otelService := "rendergraph"
	var origins stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&rootDir, "graph.root", rootDir, "Directory of importable packages")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Int64Var(&maxBody, "server.max-body-bytes", maxBody, "Request body limit in bytes")
	fs.Var(&origins, "server.cors-origin", "Allowed CORS origin")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	fs.BoolVar(&verbose, "v", verbose, "Log at debug level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}
	logger := newLogger(stderr, verbose)

	sopts := []server.Option{server.WithLogger(logger), server.WithMaxBodyBytes(maxBody)}
	if rootDir != "" {
		disc, err := ir.NewFileSystemDiscovery(context.Background(), rootDir)
		if err != nil {
			return fmt.Errorf("discover packages: %w", err)
		}
		sopts = append(sopts, server.WithLibrary(disc))
	}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	if len(origins) > 0 {
		sopts = append(sopts, server.WithCORS(origins...))
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	h := server.New(sopts...)
	mux := http.NewServeMux()
	mux.Handle("/compile", h)
	mux.Handle("/check", h)

	logger.Info("compile service listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
