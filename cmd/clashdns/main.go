package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/heimdalr/dag"
	rdns "github.com/nullrouted/clashdns"
	"github.com/oschwald/maxminddb-golang"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	logLevel uint32
}

func main() {
	var opt options
	cmd := &cobra.Command{
		Use:   "clashdns <config.toml>",
		Short: "Rule-aware DNS resolver for a traffic routing proxy",
		Long: `Resolves DNS queries the way a rule-based traffic routing proxy expects:
racing main and fallback nameserver pools, a per-domain nameserver policy,
a fake-IP allocator for transparent proxying, and a bounded answer cache.`,
		Example: "  clashdns /etc/clashdns/config.toml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opt, args[0])
		},
		SilenceUsage: true,
	}
	cmd.Flags().Uint32VarP(&opt.logLevel, "log-level", "l", uint32(logrus.InfoLevel), "log level; 0=Panic .. 6=Trace")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// node lets the DAG library order and validate dependencies between the
// upstream pools described in the config, mirroring the teacher's
// resolver/group/router graph even though this module's own dependency
// shape is always the fixed two levels built by validateDependencyGraph:
// every pool and every nameserver-policy entry bootstraps off default-nameserver.
type node struct{ id string }

var _ dag.IDInterface = node{}

func (n node) ID() string { return n.id }

func run(opt options, configPath string) error {
	if opt.logLevel > uint32(logrus.TraceLevel) {
		return fmt.Errorf("invalid log level: %d", opt.logLevel)
	}
	rdns.Log.SetLevel(logrus.Level(opt.logLevel))

	file, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := validateDependencyGraph(&file.DNS); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg, err := translate(&file.DNS)
	if err != nil {
		return err
	}

	var mmdb *maxminddb.Reader
	if file.DNS.GeoIPDatabase != "" {
		mmdb, err = maxminddb.Open(file.DNS.GeoIPDatabase)
		if err != nil {
			return fmt.Errorf("opening GeoIP database %q: %w", file.DNS.GeoIPDatabase, err)
		}
		defer mmdb.Close()
	}

	var cacheFile rdns.CacheFile
	if file.DNS.CacheFile != "" {
		cacheFile, err = rdns.OpenCacheFile(file.DNS.CacheFile)
		if err != nil {
			return fmt.Errorf("opening cache file %q: %w", file.DNS.CacheFile, err)
		}
		defer cacheFile.Close()
	}

	resolver, err := rdns.NewResolver(cfg, cacheFile, mmdb)
	if err != nil {
		return fmt.Errorf("building resolver: %w", err)
	}

	rdns.Log.WithField("kind", resolver.Kind()).Info("resolver ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	<-sig
	rdns.Log.Info("stopping")
	return nil
}

// validateDependencyGraph builds the two-level bootstrap graph and checks
// it for the duplicate-ID and cycle errors dag.AddVertex/AddEdge already
// detect, surfacing them as a configuration error instead of a panic deep
// inside resolver construction.
func validateDependencyGraph(cfg *dnsConfig) error {
	if !cfg.Enable {
		return nil
	}

	graph := dag.NewDAG()
	if _, err := graph.AddVertex(node{"default-nameserver"}); err != nil {
		return err
	}
	if _, err := graph.AddVertex(node{"nameserver"}); err != nil {
		return err
	}
	if err := graph.AddEdge("nameserver", "default-nameserver"); err != nil {
		return err
	}

	if len(cfg.Fallback) > 0 {
		if _, err := graph.AddVertex(node{"fallback"}); err != nil {
			return err
		}
		if err := graph.AddEdge("fallback", "default-nameserver"); err != nil {
			return err
		}
	}

	for pattern := range cfg.NameserverPolicy {
		id := "policy:" + pattern
		if _, err := graph.AddVertex(node{id}); err != nil {
			return err
		}
		if err := graph.AddEdge(id, "default-nameserver"); err != nil {
			return err
		}
	}

	return nil
}
