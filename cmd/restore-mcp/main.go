package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/ironsheep/restoration-studio/internal/restore"
	"github.com/ironsheep/restoration-studio/internal/server"
	"github.com/ironsheep/restoration-studio/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("restore-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage(os.Stdout)
			return
		case "run":
			configureLogging(os.Stderr)
			if err := runPipeline(os.Args[2:]); err != nil {
				log.Fatalf("Run failed: %v", err)
			}
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	configureLogging(os.Stderr)

	cfg, err := restore.LoadConfig(os.Getenv(restore.EnvConfig))
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	if os.Getenv("RESTORE_MCP_LOG_LEVEL") == "debug" {
		logger = log.Default()
		log.Printf("Restore MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	srv := server.New(cfg, logger)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func configureLogging(w io.Writer) {
	log.SetOutput(w)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "restore-mcp - scan restoration studio")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  restore-mcp                 Serve MCP over stdin/stdout")
	fmt.Fprintln(w, "  restore-mcp run [flags]     Run the whole pipeline on one scan")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run flags:")
	fmt.Fprintln(w, "  --input PATH     Scan to restore (required)")
	fmt.Fprintln(w, "  --runs DIR       Folder for run folders (default: runs)")
	fmt.Fprintln(w, "  --config FILE    YAML configuration file")
	fmt.Fprintln(w, "  --publish        Publish the finished run")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  RESTORE_MCP_LOG_LEVEL=debug    Enable debug logging")
	fmt.Fprintln(w, "  RESTORE_CONFIG                 Configuration file")
	fmt.Fprintln(w, "  RESTORE_RUNS_DIR               Folder for run folders")
	fmt.Fprintln(w, "  RESTORE_S3_BUCKET              Publish to this S3 bucket")
	fmt.Fprintln(w, "  RESTORE_AWS_REGION             AWS region for publishing")
}

// runPipeline implements the run subcommand.
func runPipeline(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	input := fs.String("input", "", "scan to restore")
	runs := fs.String("runs", "", "folder for run folders")
	configPath := fs.String("config", os.Getenv(restore.EnvConfig), "YAML configuration file")
	publish := fs.Bool("publish", false, "publish the finished run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return errors.New("--input is required")
	}

	cfg, err := restore.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *runs != "" {
		cfg.RunsDir = *runs
	}

	var pub restore.Publisher
	if *publish {
		dest, err := store.Open(cfg.Publish.Bucket, cfg.Publish.Region, cfg.Publish.Dir, log.Default())
		if err != nil {
			return err
		}
		pub = store.RunPublisher{Store: dest, Limit: cfg.Publish.Concurrency}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := restore.NewRunner(cfg, log.Default()).RunAll(ctx, *input, pub)
	if err != nil {
		return err
	}
	fmt.Printf("[OK] Created run: %s\n", st.WorkDir)
	fmt.Printf("[OK] Copied input: %s\n", st.InputCopy)
	fmt.Printf("[OK] Current image: %s\n", st.CurrentImage())
	fmt.Printf("[OK] Wrote report: %s\n", st.Path(restore.ReportFile))
	return nil
}
