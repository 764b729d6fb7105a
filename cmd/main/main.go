package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	"twitchtts/internal/app/adapters/platform/twitch/irc"
	"twitchtts/internal/app/infrastructure/config"
	"twitchtts/internal/pkg/app"
	"twitchtts/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "twitchtts",
	Short: "Reads Twitch chat aloud",
	Long: `twitchtts joins a Twitch channel as a chat bot, reads chat messages that
pass the reader filters aloud and serves a small HTTP control surface.

Credentials are taken from TWITCH_USERNAME and TWITCH_OAUTH (or a .env file).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return app.Run(ctx, app.Options{
			ConfigPath: configPath,
			EnvFile:    envFile,
			LogLevel:   logLevel,
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Log in once and report whether Twitch accepts the credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := config.New(configPath)
		if err != nil {
			return err
		}
		cfg := manager.Get()

		creds, err := config.LoadCredentials(envFile)
		if err != nil {
			return err
		}

		dialer, err := irc.NewDialer(cfg.IRC, cfg.Proxy)
		if err != nil {
			return err
		}

		log := logger.New(logger.WithFile("", 0), logger.WithConsole(cmd.ErrOrStderr()))
		log.SetLogLevel(logLevel)

		stream := irc.New(log, creds,
			irc.WithEndpoint(cfg.IRC.Address),
			irc.WithDialer(dialer),
			irc.WithLoginTimeout(cfg.IRC.LoginTimeout()),
		)
		defer func() { _ = stream.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.IRC.LoginTimeout()+5*time.Second)
		defer cancel()

		if err := stream.Connect(ctx); err != nil {
			return err
		}
		if !stream.IsConnected() {
			return fmt.Errorf("%w for %s", irc.ErrLoginRejected, creds)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "login accepted for %s at %s\n", creds.Username, cfg.IRC.Address)
		return nil
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse [nick]",
	Short: "Classify raw IRC lines from stdin the way the chat stream does",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nick := ""
		if len(args) == 1 {
			nick = args[0]
		}
		return parseLines(cmd.InOrStdin(), cmd.OutOrStdout(), nick)
	},
}

func parseLines(in io.Reader, out io.Writer, nick string) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		kind, msg := irc.Inspect(line, nick)
		if kind == "privmsg" {
			fmt.Fprintf(out, "%-9s %s <%s> %s\n", kind, msg.Channel, msg.Username, msg.Text)
			continue
		}
		fmt.Fprintf(out, "%-9s %s\n", kind, line)
	}
	return scanner.Err()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Path to the JSON settings file (created if missing)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Optional .env file with TWITCH_USERNAME and TWITCH_OAUTH")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(checkCmd, parseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
