// otterproxy — credential-based client for a speech-transcription service,
// exposed through a thin HTTP proxy.
//
// Runs as the proxy server (`otterproxy serve`) or as a direct CLI client
// for listing, uploading, and exporting speeches.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/spf13/cobra"

	"otterproxy/internal/otter"
	"otterproxy/internal/proxy"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "otterproxy",
		Short:         "Speech-transcription API client and HTTP proxy",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), speechesCmd(), uploadCmd(), downloadCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// clientConfig assembles the API client configuration from the environment.
func clientConfig() otter.Config {
	return otter.Config{
		BaseURL:     env.Str("OTTER_BASE_URL", otter.DefaultBaseURL),
		S3URL:       env.Str("S3_BASE_URL", otter.DefaultS3URL),
		Timeout:     env.Duration("HTTP_TIMEOUT", otter.DefaultTimeout),
		DownloadDir: env.Str("DOWNLOAD_DIR", "."),
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP proxy front-end",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := proxy.Config{
				ListenAddr:  ":" + env.Str("PORT", "8890"),
				SessionTTL:  env.Duration("SESSION_TTL", 30*time.Minute),
				MaxSessions: env.Int("MAX_SESSIONS", 1000),
				RateRPS:     env.Float("RATE_LIMIT_RPS", 10),
				RateBurst:   env.Int("RATE_LIMIT_BURST", 20),
				Client:      clientConfig(),
			}

			slog.Info("starting otterproxy",
				slog.String("addr", cfg.ListenAddr),
				slog.String("version", version),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := proxy.New(cfg).ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

// addCredentialFlags registers the flags shared by the direct client
// commands. Flags win over the environment.
func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("username", "", "account username (or OTTER_USERNAME)")
	cmd.Flags().String("password", "", "account password (or OTTER_PASSWORD)")
}

// loginClient builds a client from the environment and logs it in with the
// command's credentials.
func loginClient(cmd *cobra.Command) (*otter.Client, error) {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if username == "" {
		username = env.Str("OTTER_USERNAME", "")
	}
	if password == "" {
		password = env.Str("OTTER_PASSWORD", "")
	}
	if username == "" || password == "" {
		return nil, errors.New("credentials required: set --username/--password or OTTER_USERNAME/OTTER_PASSWORD")
	}

	client := otter.New(clientConfig())
	resp, err := client.Login(cmd.Context(), username, password)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}
	return client, nil
}

func speechesCmd() *cobra.Command {
	var folder, max int
	cmd := &cobra.Command{
		Use:   "speeches",
		Short: "List speeches from all sources as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loginClient(cmd)
			if err != nil {
				return err
			}
			out, err := client.GetAllSpeechesFromAllSources(cmd.Context(), folder, max)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	addCredentialFlags(cmd)
	cmd.Flags().IntVar(&folder, "folder", 0, "folder id")
	cmd.Flags().IntVar(&max, "max", 45, "max speeches per source")
	return cmd
}

func uploadCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a media file for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loginClient(cmd)
			if err != nil {
				return err
			}
			result, err := client.UploadSpeech(cmd.Context(), args[0], contentType)
			if err != nil {
				return err
			}
			if !result.Response.OK() {
				return fmt.Errorf("upload halted at %s step with status %d", result.Step, result.Response.StatusCode)
			}
			slog.Info("upload finished", slog.String("file", args[0]))
			fmt.Println(string(result.Response.Body))
			return nil
		},
	}
	addCredentialFlags(cmd)
	cmd.Flags().StringVar(&contentType, "content-type", "audio/mp4", "media content type")
	return cmd
}

func downloadCmd() *cobra.Command {
	var name, formats string
	cmd := &cobra.Command{
		Use:   "download <otid>",
		Short: "Export a speech to local files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loginClient(cmd)
			if err != nil {
				return err
			}
			result, err := client.DownloadSpeech(cmd.Context(), args[0], name, formats)
			if err != nil {
				return err
			}
			if result.Filename == "" {
				return fmt.Errorf("export rejected with status %d", result.Response.StatusCode)
			}
			fmt.Println(result.Filename)
			return nil
		},
	}
	addCredentialFlags(cmd)
	cmd.Flags().StringVar(&name, "name", "", "local file name (defaults to the otid)")
	cmd.Flags().StringVar(&formats, "formats", otter.DefaultExportFormats, "comma-separated export formats")
	return cmd
}
