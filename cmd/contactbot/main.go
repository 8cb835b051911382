// contactbot sends birthday and anniversary congratulations to your Google contacts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/contactbot/internal/api"
	"github.com/quantumlife/contactbot/internal/bot"
	"github.com/quantumlife/contactbot/internal/config"
	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
)

var (
	// Config
	configPath string
	dataDir    string
	logLevel   string

	// Version
	version = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "contactbot",
		Short: "Contact Messenger Bot",
		Long: `contactbot reads your Google contacts and, on their birthday or
anniversary, sends them a short congratulation by email, carrier
gateway email or text message.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <data-dir>/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Commands
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(listContactsCmd())
	rootCmd.AddCommand(messageContactsCmd())
	rootCmd.AddCommand(supportedProtocolsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config and applies the global flags
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" && dataDir != "" {
		path = filepath.Join(dataDir, "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logging.Init(cfg.Log.Level, logging.Format(cfg.Log.Format))
	return cfg, nil
}

// openBot loads the config and builds the bot
func openBot(interactive bool) (*bot.Bot, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	b, err := bot.New(cfg, bot.Options{Interactive: interactive})
	if err != nil {
		return nil, nil, err
	}
	return b, cfg, nil
}

// signalContext is cancelled on interrupt
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize read access to your Google contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := openBot(true)
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, cancel := signalContext()
			defer cancel()
			if err := b.Login(ctx); err != nil {
				return err
			}
			fmt.Println("Authorized.")
			return nil
		},
	}
}

func cacheFlags(cmd *cobra.Command, opts *bot.CacheOptions) {
	cmd.Flags().BoolVar(&opts.LoadCache, "load-cache", true, "read contacts from the cache when present")
	cmd.Flags().BoolVar(&opts.SaveCache, "save-cache", true, "write fetched contacts to the cache")
}

func listContactsCmd() *cobra.Command {
	opts := bot.DefaultCacheOptions()
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list-contacts",
		Short: "Fetch and log your normalized contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := openBot(true)
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, cancel := signalContext()
			defer cancel()
			contacts, err := b.ListContacts(ctx, opts)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(contacts)
			}
			return nil
		},
	}
	cacheFlags(cmd, &opts)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the contacts as JSON")
	return cmd
}

func messageContactsCmd() *cobra.Command {
	var (
		opts   = bot.MessageOptions{CacheOptions: bot.DefaultCacheOptions()}
		today  string
		groups string
	)

	cmd := &cobra.Command{
		Use:   "message-contacts",
		Short: "Message every contact celebrating today",
		RunE: func(cmd *cobra.Command, args []string) error {
			if today != "" {
				d, err := core.ParseDate(today)
				if err != nil {
					return err
				}
				opts.Today = d
			}
			opts.Groups = config.SplitGroups(groups)

			b, _, err := openBot(true)
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, cancel := signalContext()
			defer cancel()
			report, err := b.MessageContacts(ctx, opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s): %d of %d contacts messaged\n",
				report.RunID, report.Today, report.Sent(), len(report.Outcomes))
			return nil
		},
	}
	cacheFlags(cmd, &opts.CacheOptions)
	cmd.Flags().StringVar(&today, "today", "", "reference date YYYY-MM-DD (default today, UTC)")
	cmd.Flags().StringVar(&groups, "groups", "", "only message members of these groups (comma separated)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "log messages instead of sending them")
	return cmd
}

func supportedProtocolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "supported-protocols",
		Short: "List the configured messaging protocols",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := openBot(false)
			if err != nil {
				return err
			}
			defer b.Close()

			protocols, err := b.SupportedProtocols()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), protocols)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, cfg, err := openBot(false)
			if err != nil {
				return err
			}
			defer b.Close()

			if port != 0 {
				cfg.Server.Port = port
			}
			server := api.New(api.Config{Host: cfg.Server.Host, Port: cfg.Server.Port, Runner: b})

			// Handle shutdown
			ctx, cancel := signalContext()
			defer cancel()
			go func() {
				<-ctx.Done()
				logging.Info("Shutting down")
				shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
				defer done()
				server.Stop(shutdownCtx)
			}()

			return server.Start()
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

// versionCmd shows version
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show contactbot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("contactbot %s\n", version)
		},
	}
}
