package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/config"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/controller"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/dns"
	_ "github.com/yuriy-kovalchuk/geo-dns-sync/internal/dns/providers"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/geo"
	_ "github.com/yuriy-kovalchuk/geo-dns-sync/internal/geo/backends"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/pipeline"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/source"
)

var Version = "dev"

type options struct {
	configPath string
	envFile    string
	dryRun     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	zapOpts := zap.Options{
		Development: true,
	}

	cmd := &cobra.Command{
		Use:   "geo-dns-sync",
		Short: "Publish the addresses of one country from public IP lists as DNS records.",
		Long: `geo-dns-sync fetches candidate IP lists, keeps the addresses an offline
geolocation database places in the configured country, writes them to a flat
artifact file and replaces the DNS record set of one hostname with them.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrllog.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML config file (defaults to built-in settings)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading configuration, ignored when missing")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "compute the address set and print the DNS plan without writing anything")

	goFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	zapOpts.BindFlags(goFlags)
	cmd.Flags().AddGoFlagSet(goFlags)

	return cmd
}

func run(ctx context.Context, opts options) error {
	log := ctrllog.Log.WithName("setup")

	log.Info("starting geo-dns-sync", "version", Version)

	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("unable to load env file %s: %w", opts.envFile, err)
		}
	}

	cfg, err := config.LoadFromPath(opts.configPath)
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}
	log.Info("loaded config", "path", opts.configPath, "provider", cfg.DNS.Provider, "hostname", cfg.Record.Name, "country", cfg.Geo.Country)

	dnsProvider, err := dns.NewProvider(cfg.DNS.Provider, ctrllog.Log.WithName("dns-"+cfg.DNS.Provider), cfg.DNS.Settings)
	if err != nil {
		return fmt.Errorf("unable to create DNS provider: %w", err)
	}

	resolver, err := geo.Open(cfg.Geo.Backend, cfg.Geo.DatabasePath)
	if err != nil {
		return fmt.Errorf("unable to open geolocation database: %w", err)
	}
	defer func() {
		if err := resolver.Close(); err != nil {
			log.Error(err, "failed to close geolocation database")
		}
	}()
	log.Info("opened geolocation database", "backend", cfg.Geo.Backend, "path", cfg.Geo.DatabasePath)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &pipeline.Pipeline{
		Log: ctrllog.Log.WithName("pipeline"),
		Source: &source.Aggregator{
			URLs:      cfg.Sources.URLs,
			LocalPath: cfg.Sources.LocalPath,
			Client:    &http.Client{Timeout: cfg.Sources.Timeout.Duration},
			Log:       ctrllog.Log.WithName("source"),
		},
		Geo:          resolver,
		Country:      cfg.Geo.Country,
		ArtifactPath: cfg.Artifact.Path,
		Reconciler: &controller.RecordSetReconciler{
			Log:      ctrllog.Log.WithName("recordset-controller"),
			DNS:      dnsProvider,
			Hostname: cfg.Record.Name,
			Type:     cfg.Record.Type,
			TTL:      cfg.Record.TTL,
			Proxied:  cfg.Record.Proxied,
			Comment:  cfg.Record.Comment,
		},
		DryRun: opts.dryRun,
	}

	report, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync run failed: %w", err)
	}

	if opts.dryRun && report.Plan != "" {
		fmt.Print(report.Plan)
	}
	if report.Sync.Errors != nil {
		log.Info("run finished with record errors", "errors", report.Sync.Errors.Error())
	}
	log.Info("run finished", "unique", report.Unique, "skipped", report.Skipped)
	return nil
}
