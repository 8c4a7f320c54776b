// Command sunwellmem is a minimal illustrative CLI over the memory core.
// It is not "the interface" (spec.md §1 places CLI/TUI out of scope) — it
// exists only to demonstrate wiring the core's packages together the way a
// real embedding agent would: config load, journal open, simulacrum session,
// cache/lineage/decisions stores, and a final snapshot save.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"sunwellmem/internal/cache"
	"sunwellmem/internal/config"
	"sunwellmem/internal/decisions"
	"sunwellmem/internal/journal"
	"sunwellmem/internal/lineage"
	"sunwellmem/internal/logging"
	"sunwellmem/internal/simulacrum"
	"sunwellmem/internal/topology"
	"sunwellmem/internal/unifiedstore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "session":
		runSession(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "graph":
		runGraph(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sunwellmem <init|session|stats|graph> [flags]")
}

// newLogger builds the zap.Logger this command uses for its own
// diagnostics, mirroring the teacher's PersistentPreRunE logger setup in
// cmd/nerd/main.go. Internal packages log separately through
// internal/logging, initialized alongside it.
func newLogger(verbose bool, workspace string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	logLevel := "info"
	if verbose {
		logLevel = "debug"
	}
	if err := logging.Initialize(workspace, logging.Config{DebugMode: verbose, Level: logLevel}); err != nil {
		logger.Warn("failed to initialize file logging", zap.Error(err))
	}
	return logger, nil
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	workspace := fs.String("workspace", ".sunwell", "workspace directory")
	fs.Parse(args)

	cfg := config.DefaultConfig()
	cfg.Workspace = *workspace

	logger, err := newLogger(false, cfg.Workspace)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Workspace, 0755); err != nil {
		logger.Fatal("create workspace", zap.Error(err))
	}
	if err := os.MkdirAll(cfg.Lineage.Directory, 0755); err != nil {
		logger.Fatal("create lineage directory", zap.Error(err))
	}

	configPath := filepath.Join(cfg.Workspace, "config.yaml")
	if err := cfg.Save(configPath); err != nil {
		logger.Fatal("save config", zap.Error(err))
	}

	logger.Info("workspace initialized", zap.String("workspace", cfg.Workspace), zap.String("config", configPath))
}

func runSession(args []string) {
	fs := flag.NewFlagSet("session", flag.ExitOnError)
	workspace := fs.String("workspace", ".sunwell", "workspace directory")
	name := fs.String("name", "default", "simulacrum session name")
	model := fs.String("model", "claude", "initial model name")
	verbose := fs.Bool("verbose", false, "enable verbose logging")
	fs.Parse(args)

	cfg, err := config.Load(filepath.Join(*workspace, "config.yaml"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.Workspace = *workspace

	logger, err := newLogger(*verbose, cfg.Workspace)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	journalPath := filepath.Join(cfg.Workspace, "journal.jsonl")
	j, err := journal.Open(journalPath, journal.FsyncEveryAppend)
	if err != nil {
		logger.Fatal("open journal", zap.Error(err))
	}
	defer j.Close()

	sim := simulacrum.New(*name, j)
	sim.SwitchModel(*model)

	sim.AddUserMessage("What storage engine should this service use?")
	sim.AddAssistantMessage("Recommending SQLite for single-node durability.", *model)
	if _, err := sim.AddLearning("the service runs single-node, so SQLite avoids an unneeded network hop", "infra", 0.85); err != nil {
		logger.Error("add learning", zap.Error(err))
	}
	sim.SetFocus("storage", 1.0)

	ctx := context.Background()
	rendered, _, err := sim.AssembleContext(ctx, "storage engine", cfg.Retrieval.MaxContextTokens, cfg.Retrieval.Parallel)
	if err != nil {
		logger.Error("assemble context", zap.Error(err))
	} else {
		fmt.Println(rendered)
	}

	snap := sim.ToSnapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		logger.Fatal("marshal snapshot", zap.Error(err))
	}
	snapPath := filepath.Join(cfg.Workspace, "sessions", *name+".json")
	if err := os.MkdirAll(filepath.Dir(snapPath), 0755); err != nil {
		logger.Fatal("create sessions directory", zap.Error(err))
	}
	if err := os.WriteFile(snapPath, data, 0644); err != nil {
		logger.Fatal("write snapshot", zap.Error(err))
	}

	logger.Info("session snapshot saved", zap.String("path", snapPath))
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	workspace := fs.String("workspace", ".sunwell", "workspace directory")
	fs.Parse(args)

	cfg, err := config.Load(filepath.Join(*workspace, "config.yaml"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.Workspace = *workspace

	logger, err := newLogger(false, cfg.Workspace)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Workspace, 0755); err != nil {
		logger.Fatal("create workspace", zap.Error(err))
	}

	c, err := cache.Open(cfg.Cache.DatabasePath)
	if err != nil {
		logger.Fatal("open cache", zap.Error(err))
	}
	defer c.Close()

	journalPath := filepath.Join(cfg.Workspace, "journal.jsonl")
	if j, err := journal.Open(journalPath, journal.FsyncEveryAppend); err == nil {
		defer j.Close()
		if n, err := c.SyncFromJournal(j); err != nil {
			logger.Error("sync cache from journal", zap.Error(err))
		} else if n > 0 {
			logger.Info("synced cache from journal", zap.Int("entries", n))
		}
	}

	count, err := c.Count()
	if err != nil {
		logger.Error("count cache", zap.Error(err))
	}

	lin, err := lineage.Open(cfg.Lineage.Directory)
	if err != nil {
		logger.Fatal("open lineage store", zap.Error(err))
	}
	recentlyDeleted := lin.GetRecentlyDeleted(cfg.Lineage.DeletedRetentionHours)

	dec, err := decisions.Open(cfg.Decisions.LogPath, nil)
	if err != nil {
		logger.Fatal("open decisions store", zap.Error(err))
	}
	allDecisions := dec.Get("", false)

	fmt.Printf("learnings cached:     %d\n", count)
	fmt.Printf("recently deleted:     %d (within retention window)\n", len(recentlyDeleted))
	fmt.Printf("decisions recorded:   %d\n", len(allDecisions))
}

// runGraph demonstrates the unified memory store (C3-C6): two related nodes
// added, queried back by relationship, then persisted.
func runGraph(args []string) {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	workspace := fs.String("workspace", ".sunwell", "workspace directory")
	fs.Parse(args)

	cfg, err := config.Load(filepath.Join(*workspace, "config.yaml"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.Workspace = *workspace

	logger, err := newLogger(false, cfg.Workspace)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := unifiedstore.Load(cfg.Graph.Directory, cfg.Graph.Dimensions)
	if err != nil {
		store = unifiedstore.New(cfg.Graph.Dimensions)
	}
	store.SetWeights(cfg.Graph.Weights())

	decision := &topology.Node{
		ID:        "decision-sqlite",
		Content:   "use SQLite for the learning cache",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Facets:    map[string]string{"kind": "decision", "category": "infra"},
	}
	consequence := &topology.Node{
		ID:      "consequence-no-network-hop",
		Content: "single-node reads avoid a network round trip",
		Facets:  map[string]string{"kind": "observation"},
		OutEdges: []topology.Edge{
			{From: "consequence-no-network-hop", To: "decision-sqlite", Type: topology.RelElaborates},
		},
	}
	consequence.CreatedAt = time.Now()
	consequence.UpdatedAt = time.Now()

	store.AddNode(decision)
	store.AddNode(consequence)

	related := store.FindRelated("decision-sqlite", 1)
	logger.Info("graph demo", zap.Int("related_to_decision", len(related)))
	for _, n := range related {
		fmt.Printf("- %s: %s\n", n.ID, n.Content)
	}

	if err := store.Save(cfg.Graph.Directory); err != nil {
		logger.Fatal("save graph", zap.Error(err))
	}
	logger.Info("graph saved", zap.String("dir", cfg.Graph.Directory))
}
