package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/burpheart/runchat/internal/attach"
	"github.com/burpheart/runchat/internal/client"
	"github.com/burpheart/runchat/internal/config"
	"github.com/burpheart/runchat/internal/httpstream"
	"github.com/burpheart/runchat/internal/proxy"
	"github.com/burpheart/runchat/internal/tui"
	"github.com/burpheart/runchat/pkg/types"
)

var (
	configPath string

	// serve flags
	listenAddr    string
	upstreamURL   string
	upstreamProxy string
	logLevel      int
	recordFile    string

	// client flags
	proxyURL    string
	logAllParts bool
	replay      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "runchat",
		Short:        "Chat client and proxy for an Inkeep agents run service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "TOML config file")

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat proxy",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config, 127.0.0.1:3000)")
	serveCmd.Flags().StringVar(&upstreamURL, "upstream", "", "Run service base URL (e.g., http://localhost:3003)")
	serveCmd.Flags().StringVar(&upstreamProxy, "upstream-proxy", "", "Outbound proxy URL (e.g., socks5://127.0.0.1:7890)")
	serveCmd.Flags().IntVar(&logLevel, "log-level", -1, "Traffic log level (0=none, 1=basic, 2=headers, 3=body, 4=debug)")
	serveCmd.Flags().StringVar(&recordFile, "record", "", "JSONL file for tapped stream events")

	// chat command
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat page",
		RunE:  runChat,
	}
	chatCmd.Flags().StringVar(&proxyURL, "proxy", "", "Chat proxy URL (default from config)")
	chatCmd.Flags().BoolVar(&logAllParts, "log-all", false, "Start with the raw stream capture on")

	// health command
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Test the connection to the run service through the proxy",
		RunE:  runHealth,
	}
	healthCmd.Flags().StringVar(&proxyURL, "proxy", "", "Chat proxy URL (default from config)")

	// watch command
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the stream events tapped by a running proxy",
		RunE:  runWatch,
	}
	watchCmd.Flags().StringVar(&proxyURL, "proxy", "", "Chat proxy URL (default from config)")
	watchCmd.Flags().IntVar(&replay, "replay", 0, "Number of recent records to replay first")

	// encode command
	encodeCmd := &cobra.Command{
		Use:   "encode <file>...",
		Short: "Print files as data URL file parts",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEncode,
	}

	rootCmd.AddCommand(serveCmd, chatCmd, healthCmd, watchCmd, encodeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*types.Config, error) {
	cfg, err := config.Load(expandPath(configPath))
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = listenAddr
	}
	if flags.Changed("upstream") {
		cfg.UpstreamURL = upstreamURL
		cfg.HealthURL = ""
	}
	if flags.Changed("upstream-proxy") {
		cfg.UpstreamProxy = upstreamProxy
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = types.LogLevel(logLevel)
	}
	if flags.Changed("record") {
		cfg.RecordFile = expandPath(recordFile)
	}
	if flags.Changed("proxy") {
		cfg.ProxyURL = proxyURL
	}
	if flags.Changed("log-all") {
		cfg.LogAllParts = logAllParts
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║            runchat proxy starting        ║")
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Listen:    %-29s║\n", truncateString(cfg.Listen, 29))
	fmt.Printf("║  Upstream:  %-29s║\n", truncateString(cfg.UpstreamURL, 29))
	fmt.Printf("║  Graph:     %-29s║\n", truncateString(cfg.Identity.GraphID, 29))
	if cfg.UpstreamProxy != "" {
		fmt.Printf("║  Via:       %-29s║\n", truncateString(cfg.UpstreamProxy, 29))
	}
	if cfg.RecordFile != "" {
		fmt.Printf("║  Record:    %-29s║\n", truncateString(cfg.RecordFile, 29))
	}
	fmt.Println("╚══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop...")
	fmt.Println()

	server, err := proxy.NewServer(*cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	return server.Start(ctx)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	return tui.Run(ctx, tui.Options{
		Client:      client.New(cfg.ProxyURL),
		LogAllParts: cfg.LogAllParts,
		Target:      cfg.ProxyURL,
	})
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	report, err := client.New(cfg.ProxyURL).Health(ctx)
	if err != nil {
		return fmt.Errorf("connection test: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !report.Reachable {
		return fmt.Errorf("run service unreachable: %s", report.Message)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	wsURL, err := eventsURL(cfg.ProxyURL, replay)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var rec httpstream.Record
		if err := conn.ReadJSON(&rec); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		fmt.Println(formatRecord(rec))
	}
}

func runEncode(cmd *cobra.Command, args []string) error {
	parts, err := attach.EncodeFiles(args)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(parts)
}

// Helper functions

// eventsURL maps the proxy's http base URL to its websocket feed.
func eventsURL(base string, replay int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse proxy url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/events"
	if replay > 0 {
		u.RawQuery = "replay=" + strconv.Itoa(replay)
	}
	return u.String(), nil
}

func formatRecord(rec httpstream.Record) string {
	prefix := fmt.Sprintf("%s #%d.%d %-8s", rec.Timestamp, rec.StreamSeq, rec.RecordIndex, rec.Type)
	if rec.Conversation != "" {
		prefix += " [" + rec.Conversation + "]"
	}
	switch rec.Type {
	case "request":
		return fmt.Sprintf("%s %s %s", prefix, rec.Method, rec.URL)
	case "response":
		return fmt.Sprintf("%s %d %s", prefix, rec.Status, rec.ContentType)
	case "sse":
		if rec.EventType != "" {
			return fmt.Sprintf("%s event=%s %s", prefix, rec.EventType, rec.EventData)
		}
		return prefix + " " + rec.EventData
	case "error":
		return prefix + " " + rec.Error
	}
	return prefix
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
