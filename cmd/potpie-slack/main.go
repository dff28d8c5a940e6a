// ABOUTME: Entry point for the potpie-slack bridge server
// ABOUTME: Handles CLI commands: serve, init, health, manifest

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/2389/potpie-slack/internal/bot"
	"github.com/2389/potpie-slack/internal/config"
	"github.com/2389/potpie-slack/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
             _         _                   _             _
 _ __   ___ | |_ _ __ (_) ___          ___| | __ _  ___| | __
| '_ \ / _ \| __| '_ \| |/ _ \ _____  / __| |/ _' |/ __| |/ /
| |_) | (_) | |_| |_) | |  __/|_____| \__ \ | (_| | (__|   <
| .__/ \___/ \__| .__/|_|\___|        |___/_|\__,_|\___|_|\_\
|_|              |_|
`

// getConfigPath returns the path to the bridge config file.
// Priority: POTPIE_SLACK_CONFIG env var > XDG_CONFIG_HOME/potpie-slack/config.yaml > ~/.config/potpie-slack/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("POTPIE_SLACK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "potpie-slack", "config.yaml")
}

// getDataPath returns the path to the potpie-slack data directory.
// Priority: XDG_DATA_HOME/potpie-slack > ~/.local/share/potpie-slack
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "potpie-slack")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: potpie-slack <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve       Start the Slack bridge server")
		fmt.Println("  init        Create a new config file interactively")
		fmt.Println("  health      Check server health")
		fmt.Println("  manifest    Print a Slack app manifest for this deployment")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "manifest":
		err = runManifest(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Potpie:    %s\n", cfg.Potpie.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s\n", cfg.Store.Backend)

	// Tailscale status
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		yellow.Print(" [funnel]")
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting potpie-slack",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"potpie_url", cfg.Potpie.BaseURL,
	)

	// Create and run server
	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())

	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("potpie-slack configuration setup")
	fmt.Println("================================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultStorePath := filepath.Join(defaultDataPath, "store")
	defaultDBPath := filepath.Join(defaultDataPath, "potpie.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", config.DefaultHTTPAddr)
	publicURL := prompt(reader, "Public base URL (empty when using Tailscale Funnel)", "")

	// Slack app credentials
	fmt.Println("\n--- Slack Configuration ---")
	signingSecret := prompt(reader, "Slack signing secret", "")
	multiStr := prompt(reader, "Distribute to multiple workspaces (OAuth)?", "no")
	multiWorkspace := strings.ToLower(multiStr) == "yes" || strings.ToLower(multiStr) == "y"

	var botToken, clientID, clientSecret, stateSecret string
	if multiWorkspace {
		clientID = prompt(reader, "Slack client ID", "")
		clientSecret = prompt(reader, "Slack client secret", "")
		generated, err := generateStateSecret()
		if err != nil {
			return fmt.Errorf("generating state secret: %w", err)
		}
		stateSecret = generated
		fmt.Println("Generated a random state secret for OAuth install links.")
	} else {
		botToken = prompt(reader, "Slack bot token (xoxb-...)", "")
	}

	// Potpie backend
	fmt.Println("\n--- Potpie Configuration ---")
	potpieURL := prompt(reader, "Potpie base URL", config.DefaultPotpieBaseURL)
	sendTimeout := prompt(reader, "Send timeout (how long an agent reply may take)", "120s")

	// Store
	fmt.Println("\n--- Store Configuration ---")
	backend := prompt(reader, "Store backend (memory/file/sqlite)", config.DefaultStoreBackend)

	var storePath, dbPath string
	switch backend {
	case "file":
		storePath = prompt(reader, "Store directory", defaultStorePath)
	case "sqlite":
		dbPath = prompt(reader, "SQLite database path", defaultDBPath)
	}

	// Tailscale
	fmt.Println("\n--- Tailscale Configuration ---")
	enableTailscale := prompt(reader, "Enable Tailscale Funnel?", "no")
	tailscaleEnabled := strings.ToLower(enableTailscale) == "yes" || strings.ToLower(enableTailscale) == "y"

	var tsHostname, tsAuthKey string
	var tsEphemeral bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "potpie-slack")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty for interactive)", "")
		ephemeralStr := prompt(reader, "Ephemeral node?", "no")
		tsEphemeral = strings.ToLower(ephemeralStr) == "yes" || strings.ToLower(ephemeralStr) == "y"
	}

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# potpie-slack configuration\n")
	cfg.WriteString("# Generated by potpie-slack init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	if publicURL != "" {
		cfg.WriteString(fmt.Sprintf("  public_url: \"%s\"\n", publicURL))
	}
	cfg.WriteString("\n")

	cfg.WriteString("slack:\n")
	cfg.WriteString(fmt.Sprintf("  signing_secret: \"%s\"\n", signingSecret))
	if multiWorkspace {
		cfg.WriteString(fmt.Sprintf("  client_id: \"%s\"\n", clientID))
		cfg.WriteString(fmt.Sprintf("  client_secret: \"%s\"\n", clientSecret))
		cfg.WriteString(fmt.Sprintf("  state_secret: \"%s\"\n", stateSecret))
	} else {
		cfg.WriteString(fmt.Sprintf("  bot_token: \"%s\"\n", botToken))
	}
	cfg.WriteString("\n")

	cfg.WriteString("potpie:\n")
	cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", potpieURL))
	cfg.WriteString(fmt.Sprintf("  send_timeout: \"%s\"\n", sendTimeout))
	cfg.WriteString("\n")

	cfg.WriteString("store:\n")
	cfg.WriteString(fmt.Sprintf("  backend: \"%s\"\n", backend))
	if storePath != "" {
		cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", storePath))
	}
	if dbPath != "" {
		cfg.WriteString(fmt.Sprintf("  db_path: \"%s\"\n", dbPath))
	}
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", tailscaleEnabled))
	if tailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: \"%s\"\n", tsHostname))
		if tsAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: \"%s\"\n", tsAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", tsEphemeral))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	switch backend {
	case "file":
		if err := os.MkdirAll(storePath, 0755); err != nil {
			return fmt.Errorf("creating store directory: %w", err)
		}
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  potpie-slack serve\n")
	fmt.Println("\nTo print a Slack app manifest for this deployment:")
	fmt.Printf("  potpie-slack manifest\n")

	return nil
}

func generateStateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

// appManifest mirrors the app manifest schema Slack expects when creating
// or updating an app. https://api.slack.com/reference/manifests
type appManifest struct {
	DisplayInformation manifestDisplay  `yaml:"display_information"`
	Features           manifestFeatures `yaml:"features"`
	OAuthConfig        manifestOAuth    `yaml:"oauth_config"`
	Settings           manifestSettings `yaml:"settings"`
}

type manifestDisplay struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	BackgroundColor string `yaml:"background_color"`
}

type manifestFeatures struct {
	AppHome       manifestAppHome   `yaml:"app_home"`
	BotUser       manifestBotUser   `yaml:"bot_user"`
	SlashCommands []manifestCommand `yaml:"slash_commands"`
}

type manifestAppHome struct {
	HomeTabEnabled     bool `yaml:"home_tab_enabled"`
	MessagesTabEnabled bool `yaml:"messages_tab_enabled"`
}

type manifestBotUser struct {
	DisplayName  string `yaml:"display_name"`
	AlwaysOnline bool   `yaml:"always_online"`
}

type manifestCommand struct {
	Command     string `yaml:"command"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

type manifestOAuth struct {
	RedirectURLs []string       `yaml:"redirect_urls"`
	Scopes       manifestScopes `yaml:"scopes"`
}

type manifestScopes struct {
	Bot []string `yaml:"bot"`
}

type manifestSettings struct {
	EventSubscriptions   manifestEvents        `yaml:"event_subscriptions"`
	Interactivity        manifestInteractivity `yaml:"interactivity"`
	OrgDeployEnabled     bool                  `yaml:"org_deploy_enabled"`
	SocketModeEnabled    bool                  `yaml:"socket_mode_enabled"`
	TokenRotationEnabled bool                  `yaml:"token_rotation_enabled"`
}

type manifestEvents struct {
	RequestURL string   `yaml:"request_url"`
	BotEvents  []string `yaml:"bot_events"`
}

type manifestInteractivity struct {
	IsEnabled  bool   `yaml:"is_enabled"`
	RequestURL string `yaml:"request_url"`
}

func runManifest(args []string) error {
	var baseURL string
	for i := 0; i < len(args); i++ {
		if args[i] == "--base-url" && i+1 < len(args) {
			baseURL = args[i+1]
			i++
		}
	}

	// Fall back to the configured public URL when no flag is given. A
	// missing config is fine here; the placeholder below still produces a
	// manifest the operator can edit by hand.
	if baseURL == "" {
		if cfg, err := config.Load(getConfigPath()); err == nil {
			baseURL = cfg.Server.PublicURL
		}
	}
	if baseURL == "" {
		baseURL = "https://YOUR-HOST"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	m := appManifest{
		DisplayInformation: manifestDisplay{
			Name:            "PotpieAI",
			Description:     "Chat with Potpie agents about your repositories without leaving Slack.",
			BackgroundColor: "#1a1d21",
		},
		Features: manifestFeatures{
			AppHome: manifestAppHome{
				HomeTabEnabled:     true,
				MessagesTabEnabled: true,
			},
			BotUser: manifestBotUser{
				DisplayName:  "PotpieAI",
				AlwaysOnline: true,
			},
			SlashCommands: []manifestCommand{
				{
					Command:     "/authenticate",
					URL:         baseURL + "/slack/commands",
					Description: "Save your Potpie API token",
				},
				{
					Command:     "/potpie",
					URL:         baseURL + "/slack/commands",
					Description: "Start a conversation with a Potpie agent",
				},
			},
		},
		OAuthConfig: manifestOAuth{
			RedirectURLs: []string{baseURL + "/slack/oauth_redirect"},
			Scopes:       manifestScopes{Bot: bot.InstallScopes},
		},
		Settings: manifestSettings{
			EventSubscriptions: manifestEvents{
				RequestURL: baseURL + "/slack/events",
				BotEvents:  []string{"app_mention", "app_home_opened"},
			},
			Interactivity: manifestInteractivity{
				IsEnabled:  true,
				RequestURL: baseURL + "/slack/interactive",
			},
		},
	}

	out, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	fmt.Print(string(out))
	return nil
}
