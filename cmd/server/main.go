package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/studynotify/internal/app"
	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	issueToken string
	scopes     string
	tokenTTL   time.Duration
}

func parseFlags(args []string, out io.Writer) (options, error) {
	fs := flag.NewFlagSet("studynotify-server", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration directory or file")
	fs.StringVar(&opts.issueToken, "issue-token", "", "Print a service token for the given subject and exit")
	fs.StringVar(&opts.scopes, "scopes", iauth.ScopeAll, "Comma separated scopes for -issue-token")
	fs.DurationVar(&opts.tokenTTL, "token-ttl", 0, "Lifetime of the token issued with -issue-token (defaults to auth.jwt.token_ttl)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(opts.configPath)
	if err != nil {
		return err
	}

	if strings.TrimSpace(opts.issueToken) != "" {
		return issueServiceToken(cfg, opts, out)
	}

	adjusted, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel, cfg.Server.LogFormat); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")
	for _, a := range adjusted {
		fields := []zap.Field{zap.String("key", a.Key), zap.String("reason", a.Reason)}
		if a.Value != "" {
			fields = append(fields, zap.String("value", a.Value))
		}
		log.Warn("configuration adjusted at startup", fields...)
	}

	if err := ensureSecretsPresent(cfg); err != nil {
		return err
	}

	stack, err := bootstrapRuntime(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stack.Shutdown(shutdownCtx, log)
	}()

	if err := stack.Start(); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

// issueServiceToken prints a signed token for the external scheduler or delivery workers.
// The secret must be configured; a generated one would not match the running server.
func issueServiceToken(cfg *app.Config, opts options, out io.Writer) error {
	if err := ensureSecretsPresent(cfg); err != nil {
		return err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	token, err := jwtSvc.IssueServiceToken(iauth.ServiceTokenInput{
		Subject: opts.issueToken,
		Scopes:  strings.Split(opts.scopes, ","),
		TTL:     opts.tokenTTL,
	})
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	_, err = fmt.Fprintln(out, token)
	return err
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func ensureSecretsPresent(cfg *app.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}
	if len(cfg.Auth.JWT.Secret) < 32 {
		return fmt.Errorf("auth.jwt.secret must be at least 32 characters (current: %d)", len(cfg.Auth.JWT.Secret))
	}

	return nil
}
