// ttyhub shares a terminal session with browser clients over WebSocket.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trybotster/ttyhub/internal/config"
	"github.com/trybotster/ttyhub/internal/ttyd"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	rootCmd := &cobra.Command{
		Use:     "ttyhub",
		Short:   "Share a terminal session with browser clients over WebSocket",
		Version: Version,
	}

	serveCmd := &cobra.Command{
		Use:   "serve <name>=<command> [args...]",
		Short: "Start the server with one or more named services",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runServe,
	}
	serveCmd.Flags().String("address", "", "listen address (host:port, or unix:/path)")
	serveCmd.Flags().String("credential", "", "base64 user:pass Basic credential, or 'generate'")
	serveCmd.Flags().Bool("keyring", false, "persist a generated credential to the OS keyring instead of printing it to stderr")
	serveCmd.Flags().Bool("once", false, "accept only a single client, then exit")
	serveCmd.Flags().Bool("readonly", false, "reject client input")
	serveCmd.Flags().Bool("check-origin", false, "reject connections whose Origin header does not match Host")
	serveCmd.Flags().Int("max-clients", 0, "maximum concurrent clients (0 = unlimited)")
	serveCmd.Flags().String("index", "", "path to a custom index.html")
	serveCmd.Flags().String("term", "xterm-256color", "TERM value exported to spawned commands")
	serveCmd.Flags().Int("reconnect", 10, "seconds advertised to clients for reconnect backoff")
	serveCmd.Flags().String("log-transcripts", "", "directory to write optional plain-text session transcripts")
	rootCmd.AddCommand(serveCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		RunE:  runConfig,
	}
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseServices turns "name=command arg1 arg2" positional args into a
// []ttyd.Service, one per argument. Each service is registered at
// "/name".
func parseServices(args []string) ([]ttyd.Service, error) {
	services := make([]ttyd.Service, 0, len(args))
	for _, arg := range args {
		eq := strings.IndexByte(arg, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("invalid service spec %q, want name=command", arg)
		}
		name := arg[:eq]
		argv := strings.Fields(arg[eq+1:])
		if len(argv) == 0 {
			return nil, fmt.Errorf("invalid service spec %q: empty command", arg)
		}
		services = append(services, ttyd.Service{Path: "/" + name, Argv: argv})
	}
	return services, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		cfg.Address = addr
	}
	useKeyring, _ := cmd.Flags().GetBool("keyring")
	if cred, _ := cmd.Flags().GetString("credential"); cred != "" {
		if cred == "generate" {
			generated, err := generateCredential()
			if err != nil {
				return err
			}
			cred = generated
			if useKeyring {
				if err := config.SaveCredentialToKeyring(cred); err != nil {
					return err
				}
				slog.Info("generated credential saved to OS keyring")
			} else {
				printCredentialBanner(cred)
			}
		}
		if err := cfg.SetCredential(cred); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("persist credential hash: %w", err)
		}
	}
	if cfg.Credential == "" && useKeyring {
		if cred, err := config.LoadCredentialFromKeyring(); err == nil && cred != "" {
			cfg.Credential = cred
		}
	}

	maxClients, _ := cmd.Flags().GetInt("max-clients")
	readonly, _ := cmd.Flags().GetBool("readonly")
	checkOrigin, _ := cmd.Flags().GetBool("check-origin")
	index, _ := cmd.Flags().GetString("index")
	termType, _ := cmd.Flags().GetString("term")
	reconnect, _ := cmd.Flags().GetInt("reconnect")
	transcriptDir, _ := cmd.Flags().GetString("log-transcripts")
	once, _ := cmd.Flags().GetBool("once")

	// Config file and environment values apply unless overridden by a flag.
	if !cmd.Flags().Changed("max-clients") {
		maxClients = cfg.MaxClients
	}
	if !cmd.Flags().Changed("reconnect") {
		reconnect = cfg.ReconnectSeconds
	}
	readonly = readonly || cfg.Readonly
	checkOrigin = checkOrigin || cfg.CheckOrigin
	if transcriptDir == "" {
		transcriptDir = cfg.TranscriptDir
	}

	services, err := parseServices(args)
	if err != nil {
		return err
	}

	serverCfg := ttyd.Config{
		Credential:       cfg.Credential,
		TermType:         termType,
		ReconnectSeconds: reconnect,
		Readonly:         readonly,
		CheckOrigin:      checkOrigin,
		Once:             once,
		MaxClients:       maxClients,
		IndexPath:        index,
		TranscriptDir:    transcriptDir,
	}

	registry := ttyd.NewServiceRegistry(services)
	srv := ttyd.NewServer(serverCfg, registry, slog.Default())

	printStartupBanner(cfg.Address, services)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("received shutdown signal")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		cancel()
	}()

	if err := srv.ListenAndServe(cfg.Address); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func generateCredential() (string, error) {
	userBytes := make([]byte, 6)
	passBytes := make([]byte, 12)
	if _, err := rand.Read(userBytes); err != nil {
		return "", fmt.Errorf("generate credential: %w", err)
	}
	if _, err := rand.Read(passBytes); err != nil {
		return "", fmt.Errorf("generate credential: %w", err)
	}
	user := base64.RawURLEncoding.EncodeToString(userBytes)
	pass := base64.RawURLEncoding.EncodeToString(passBytes)
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass)), nil
}

// printStartupBanner shows a human-readable summary on an interactive
// terminal, or a single JSON status line otherwise, grounded on the
// teacher's internal/auth term.IsTerminal check.
func printStartupBanner(address string, services []ttyd.Service) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		paths := make([]string, len(services))
		for i, svc := range services {
			paths[i] = svc.Path
		}
		data, _ := json.Marshal(map[string]any{"address": address, "services": paths})
		fmt.Println(string(data))
		return
	}

	fmt.Printf("ttyhub listening on %s\n", address)
	for _, svc := range services {
		fmt.Printf("  %s -> %v\n", svc.Path, svc.Argv)
	}
}

func printCredentialBanner(credential string) {
	fmt.Fprintf(os.Stderr, "\n  Generated credential (base64 user:pass): %s\n\n", credential)
}
