package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/profai/internal/auth"
	"github.com/pavelanni/profai/internal/handler"
	appI18n "github.com/pavelanni/profai/internal/i18n"
	"github.com/pavelanni/profai/internal/llm"
	"github.com/pavelanni/profai/internal/llm/prompts"
	"github.com/pavelanni/profai/internal/model"
	"github.com/pavelanni/profai/internal/store"
	"github.com/pavelanni/profai/internal/tutor"
)

const (
	jwtSecretKey           = "jwt_secret"
	revokedCleanupInterval = time.Hour
	shutdownTimeout        = 30 * time.Second

	// expiresInEnv is the token lifetime in seconds, as older deployments set it.
	expiresInEnv = "JWT_EXPIRES_IN"
)

// envAliases binds the bare environment names used by existing deployments.
var envAliases = map[string][]string{
	"llm-key":             {"OPENAI_API_KEY"},
	"llm-model":           {"MODEL_NAME"},
	"jwt-secret":          {"JWT_SECRET"},
	"jwt-expires-minutes": {"ACCESS_TOKEN_EXPIRE_MINUTES"},
	"history-limit":       {"MAX_HISTORY_MESSAGES"},
	"db":                  {"DB_NAME"},
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "profai",
		Short: "Educational chat backend with a gamified AI tutor",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `profai --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8001", "HTTP listen address")
	f.String("db", "profai.db", "SQLite database path")
	f.StringP("lang", "l", "pt-BR", "Default language for replies and messages (pt-BR, en)")
	f.String("llm-provider", "openai", "LLM provider (openai, anthropic, gemini, mock)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty for the vendor default)")
	f.String("llm-key", "", "API key for the LLM provider (or set OPENAI_API_KEY)")
	f.String("llm-model", "gpt-4o-mini", "LLM model name")
	f.Int("llm-max-tokens", 1500, "Maximum tokens per reply")
	f.Float64("llm-temperature", 0.7, "Sampling temperature")
	f.Bool("llm-json-mode", true, "Ask the provider for a JSON object response")
	f.Duration("llm-timeout", 60*time.Second, "Upper bound for one upstream call")
	f.Int("history-limit", tutor.DefaultHistoryLimit, "Stored messages loaded per chat turn")
	f.Int("prompt-history", prompts.DefaultMaxHistory, "History turns forwarded to the model")
	f.String("jwt-secret", "", "HMAC secret for access tokens (generated and stored when empty)")
	f.Int("jwt-expires-minutes", int(auth.DefaultTTL/time.Minute), "Access token lifetime in minutes")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a student's conversations as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "profai.db", "SQLite database path")
	f.String("email", "", "Email of the student to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("PROFAI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if cmd.Flags().Lookup(key) == nil {
			continue
		}
		envKey := "PROFAI_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		_ = v.BindEnv(append([]string{key, envKey}, names...)...)
	}

	v.SetConfigName("profai")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/profai")
	v.AddConfigPath("/etc/profai")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	users, err := db.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	slog.Info("database ready", "path", v.GetString("db"), "users", users)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	provider, err := llm.New(ctx, llm.Config{
		Provider: v.GetString("llm-provider"),
		BaseURL:  v.GetString("llm-url"),
		APIKey:   v.GetString("llm-key"),
		Model:    v.GetString("llm-model"),
	})
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}

	ttl, err := tokenTTL(v)
	if err != nil {
		return err
	}
	tokens, err := newIssuer(ctx, db, v.GetString("jwt-secret"), ttl)
	if err != nil {
		return err
	}

	cfg := model.ServerConfig{
		HistoryLimit:      v.GetInt("history-limit"),
		PromptHistory:     v.GetInt("prompt-history"),
		MaxTokens:         v.GetInt("llm-max-tokens"),
		Temperature:       v.GetFloat64("llm-temperature"),
		JSONMode:          v.GetBool("llm-json-mode"),
		GenerationTimeout: v.GetDuration("llm-timeout"),
	}
	svc := tutor.NewService(db, provider, cfg, fallbackCopy(lang))
	h := handler.New(db, svc, tokens)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	r.Route("/api", h.Routes)

	go cleanupRevokedTokens(ctx, db)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"provider", v.GetString("llm-provider"),
			"model", provider.ModelID(),
			"lang", lang,
			"history_limit", cfg.HistoryLimit,
			"prompt_history", cfg.PromptHistory,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// newIssuer builds the token issuer, generating and persisting a secret on first start
// when none is configured.
// tokenTTL returns the access token lifetime. An explicit jwt-expires-minutes
// wins over JWT_EXPIRES_IN, which is given in seconds.
func tokenTTL(v *viper.Viper) (time.Duration, error) {
	if !v.IsSet("jwt-expires-minutes") {
		if raw := strings.TrimSpace(os.Getenv(expiresInEnv)); raw != "" {
			secs, err := strconv.Atoi(raw)
			if err != nil || secs <= 0 {
				return 0, fmt.Errorf("invalid %s %q: want a positive number of seconds", expiresInEnv, raw)
			}
			return time.Duration(secs) * time.Second, nil
		}
	}
	minutes := v.GetInt("jwt-expires-minutes")
	if minutes <= 0 {
		return 0, fmt.Errorf("invalid jwt-expires-minutes %d", minutes)
	}
	return time.Duration(minutes) * time.Minute, nil
}

func newIssuer(ctx context.Context, db *store.Store, secret string, ttl time.Duration) (*auth.Issuer, error) {
	if secret == "" {
		var err error
		secret, err = db.EnsureMetadata(ctx, jwtSecretKey, randomSecret)
		if err != nil {
			return nil, fmt.Errorf("load jwt secret: %w", err)
		}
		slog.Info("using stored jwt secret")
	}
	tokens, err := auth.NewIssuer(secret, ttl)
	if err != nil {
		return nil, fmt.Errorf("create token issuer: %w", err)
	}
	return tokens, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// fallbackCopy localizes the reply used when model output cannot be parsed.
func fallbackCopy(lang string) tutor.FallbackCopy {
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(lang))
	return tutor.FallbackCopy{
		Intro:     appI18n.T(ctx, "FallbackIntro"),
		Steps:     []string{appI18n.T(ctx, "FallbackStepAnalyze"), appI18n.T(ctx, "FallbackStepPrepare")},
		Examples:  []string{appI18n.T(ctx, "FallbackExample")},
		FollowUps: []string{appI18n.T(ctx, "FallbackFollowUp")},
	}
}

func cleanupRevokedTokens(ctx context.Context, db *store.Store) {
	ticker := time.NewTicker(revokedCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.CleanupRevokedTokens(ctx)
			if err != nil {
				slog.Warn("failed to clean up revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("cleaned up revoked tokens", "count", n)
			}
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	email := v.GetString("email")
	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("no user with email %s", email)
	}

	export, err := db.ExportUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("export user: %w", err)
	}
	export.ExportedAt = time.Now().UTC()

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported conversations", "username", export.Username, "conversations", len(export.Conversations))
	return nil
}
