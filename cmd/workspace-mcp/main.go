package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sushiba2ker/google-workspace-mcp/internal"
	"github.com/Sushiba2ker/google-workspace-mcp/internal/config"
	"github.com/Sushiba2ker/google-workspace-mcp/mcp"
	"github.com/Sushiba2ker/google-workspace-mcp/openapi"
	"github.com/Sushiba2ker/google-workspace-mcp/session"
	"github.com/Sushiba2ker/google-workspace-mcp/tools"
)

var rootCmd = &cobra.Command{
	Use:   "workspace-mcp [openapi-spec-path-or-url]",
	Short: "A session-aware MCP server for a set of registered tools",
	Long: `workspace-mcp is an MCP server that exposes a registry of tools over
JSON-RPC 2.0, correlating calls with an opaque session token.

When given an OpenAPI specification, each operation in it is registered as a
tool that calls the upstream API. The spec argument can be:
- A local file path
- An HTTP(S) URL
- "-" to read from stdin

With --listen the server speaks the HTTP binding (one JSON-RPC exchange per
POST to /mcp, session token in the Mcp-Session-Id header); otherwise it
processes requests line by line on stdin/stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		if !verbose {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}

		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if listen != "" {
			cfg.Listen = listen
		}
		if sessionTimeout > 0 {
			cfg.SessionTimeout = config.Duration(sessionTimeout)
		}
		if auth != "" {
			cfg.Upstream.Auth = auth
		}
		if len(args) > 0 {
			cfg.Upstream.Spec = args[0]
		}

		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = retries
		retryClient.RetryWaitMin = 1 * time.Second
		retryClient.RetryWaitMax = 30 * time.Second
		retryClient.HTTPClient.Timeout = timeout
		retryClient.Logger = logger

		if rps > 0 {
			retryClient.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
				// Ensure we wait at least 1/rps between requests
				minWait := time.Second / time.Duration(rps)
				if min < minWait {
					min = minWait
				}
				return retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
			}
		}

		client := retryClient.StandardClient()
		if cfg.Upstream.Auth != "" {
			client.Transport = internal.NewAuthTransport(client.Transport, cfg.Upstream.Auth)
		}

		store := session.NewStore(time.Duration(cfg.SessionTimeout),
			session.WithLogger(logger),
			session.WithSweepInterval(time.Duration(cfg.SweepInterval)),
		)
		defer store.Close()

		registry := tools.NewRegistry()

		var rpcInput io.Reader = os.Stdin
		if cfg.Upstream.Spec != "" {
			specData, specInput, err := readSpec(cfg.Upstream.Spec, client, logger)
			if err != nil {
				return err
			}
			if specInput != nil {
				defer specInput.Close()
				rpcInput = specInput
			}

			source, err := openapi.New(specData,
				openapi.WithClient(client),
				openapi.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			if err := registry.Load(ctx, source); err != nil {
				return err
			}
			logger.Info("registered tools from spec", "count", registry.Len())
		}

		server, err := mcp.NewServer(
			mcp.WithRegistry(registry),
			mcp.WithSessions(store),
			mcp.WithLogger(logger),
			mcp.WithServerInfo(cfg.Server.Name, cfg.Server.Version),
		)
		if err != nil {
			return fmt.Errorf("error creating server: %w", err)
		}

		g, ctx := errgroup.WithContext(ctx)

		if cfg.Listen != "" {
			mux := http.NewServeMux()
			server.RegisterRoutes(mux)
			httpServer := &http.Server{
				Addr:    cfg.Listen,
				Handler: mux,
			}

			g.Go(func() error {
				logger.Info("listening", "addr", cfg.Listen)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				return httpServer.Close()
			})
		} else {
			g.Go(func() error {
				// A single server-minted session spans the whole stream
				streamCtx := mcp.WithSessionID(ctx, store.GetOrCreate("").ID)
				transport := mcp.NewStdioTransport(server, rpcInput, os.Stdout, os.Stderr)
				return transport.Run(streamCtx)
			})
		}

		return g.Wait()
	},
}

// readSpec loads the OpenAPI document from a file, URL, or stdin. When the
// spec comes from stdin, it also returns /dev/tty for RPC input, since
// stdin isn't available for requests while reading from a pipe.
func readSpec(spec string, client *http.Client, logger *slog.Logger) ([]byte, *os.File, error) {
	switch {
	case spec == "-":
		logger.Info("reading spec from stdin")

		tty, err := os.Open("/dev/tty")
		if err != nil {
			return nil, nil, fmt.Errorf("error opening /dev/tty: %w", err)
		}

		specData, err := io.ReadAll(os.Stdin)
		if err != nil {
			tty.Close()
			return nil, nil, fmt.Errorf("error reading OpenAPI spec from stdin: %w", err)
		}
		return specData, tty, nil

	case strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://"):
		logger.Info("reading spec from URL", "url", spec)

		resp, err := client.Get(spec)
		if err != nil {
			return nil, nil, fmt.Errorf("error downloading spec: %w", err)
		}
		defer resp.Body.Close()

		specData, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("error reading spec from %s: %w", spec, err)
		}
		return specData, nil, nil

	default:
		logger.Info("reading spec from file", "file", spec)

		cleanPath := filepath.Clean(spec)
		info, err := os.Stat(cleanPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil, fmt.Errorf("spec file does not exist: %s", cleanPath)
			}
			return nil, nil, fmt.Errorf("error accessing spec file %s: %w", cleanPath, err)
		}
		if info.IsDir() {
			return nil, nil, fmt.Errorf("specified path is a directory, not a file: %s", cleanPath)
		}
		if info.Size() > 100*1024*1024 { // 100MB limit
			return nil, nil, fmt.Errorf("spec file too large (max 100MB): %s", cleanPath)
		}

		specData, err := os.ReadFile(cleanPath)
		if err != nil {
			return nil, nil, fmt.Errorf("error reading spec file %s: %w", cleanPath, err)
		}
		return specData, nil, nil
	}
}

var (
	configPath     string
	listen         string
	auth           string
	verbose        bool
	retries        int
	timeout        time.Duration
	rps            int
	sessionTimeout time.Duration

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.Flags().StringVarP(&listen, "listen", "l", "", "HTTP listen address (e.g. ':8080'); stdio transport when unset")
	rootCmd.Flags().StringVar(&auth, "auth", "", "Authorization header value for upstream calls (e.g. 'Bearer token123')")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging to stderr")
	rootCmd.Flags().IntVar(&retries, "retries", 3, "Maximum number of retries for failed upstream requests")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Upstream HTTP request timeout")
	rootCmd.Flags().IntVarP(&rps, "rps", "r", 0, "Maximum upstream requests per second (0 for no limit)")
	rootCmd.Flags().DurationVar(&sessionTimeout, "session-timeout", 0, "Idle session expiry (overrides config)")

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
