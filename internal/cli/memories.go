package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quietfire/constellation/internal/config"
	"github.com/quietfire/constellation/internal/engine"
	"github.com/quietfire/constellation/internal/llm"
	"github.com/quietfire/constellation/internal/store"
)

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("CONSTELLATION_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

// openEngine builds an engine from the default config for one-shot CLI
// commands that need the classifier.
func openEngine() (*engine.Engine, *store.DB, error) {
	godotenv.Load()

	cfgPath, err := config.DefaultPath()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.Provider = "anthropic"
		cfg.LLM.AnthropicKey = key
	}

	db, err := openDB()
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create llm client: %w", err)
	}

	eng := engine.New(db, client)
	if cfg.Budget.Quota > 0 {
		eng.SetGate(engine.NewGate(cfg.Budget.Quota, time.Duration(cfg.Budget.WindowSeconds)*time.Second))
	}
	configureEmbedder(eng, db, cfg)
	return eng, db, nil
}

// --- add command ---

var addCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Classify and store a memory fragment",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()
	defer eng.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	res, err := eng.ClassifyAndAssign(ctx, text)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	fmt.Printf("%s  %s\n", res.Memory.ID, res.Memory.Mood)
	if res.IsNewFamily {
		fmt.Println("  new family")
	}
	fmt.Printf("  decided by: %s", res.DecidedBy)
	if res.BestMatch != "" {
		fmt.Printf(" (best match %s at %.2f)", res.BestMatch, res.BestScore)
	}
	fmt.Println()
	if len(res.Memory.Tags) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(res.Memory.Tags, ", "))
	}
	return nil
}

// --- list command ---

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent memories",
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of memories")
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	memories, err := db.RecentMemories(listLimit)
	if err != nil {
		return fmt.Errorf("list memories: %w", err)
	}
	if len(memories) == 0 {
		fmt.Println("No memories yet.")
		return nil
	}

	for _, m := range memories {
		text := m.Text
		if len(text) > 72 {
			text = text[:72] + "..."
		}
		fmt.Printf("%s  [%s] %s\n", m.ID[:8], m.Mood, text)
	}
	return nil
}

// --- families command ---

var familiesCmd = &cobra.Command{
	Use:   "families",
	Short: "Show mood families and their profiles",
	RunE:  runFamilies,
}

func runFamilies(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	sample, err := db.RecentMemories(engine.ProfileSampleCap)
	if err != nil {
		return fmt.Errorf("sample memories: %w", err)
	}
	profiles := engine.BuildProfiles(sample)
	if len(profiles) == 0 {
		fmt.Println("No families yet.")
		return nil
	}

	ordered := make([]*engine.FamilyProfile, 0, len(profiles))
	for _, p := range profiles {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Size != ordered[j].Size {
			return ordered[i].Size > ordered[j].Size
		}
		return ordered[i].Mood < ordered[j].Mood
	})

	for _, p := range ordered {
		fmt.Printf("%s (%d)\n", p.Mood, p.Size)
		if len(p.Theme.EmotionalCore) > 0 {
			var parts []string
			for _, e := range p.Theme.EmotionalCore {
				parts = append(parts, fmt.Sprintf("%s %.2f", e.Label, e.Weight))
			}
			fmt.Printf("  core: %s\n", strings.Join(parts, ", "))
		}
		if len(p.Tags) > 0 {
			fmt.Printf("  tags: %s\n", strings.Join(p.Tags, ", "))
		}
	}
	return nil
}

// --- graph command ---

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Recompute and show memory links and clusters",
	RunE:  runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	memories, err := db.RecentMemories(engine.LinkWindowCap)
	if err != nil {
		return fmt.Errorf("list memories: %w", err)
	}

	links := engine.ComputeLinks(memories)
	if err := db.ReplaceLinks(links); err != nil {
		return fmt.Errorf("store links: %w", err)
	}
	clusters := engine.ResolveClusterLabels(memories, links)

	if len(links) == 0 {
		fmt.Println("No links yet.")
	}
	for _, l := range links {
		fmt.Printf("%.1f  %-6s %s -- %s  (%s)\n", l.Score, l.Type, l.FromID[:8], l.ToID[:8], l.Reason)
	}

	// Cluster sizes, largest first.
	sizes := make(map[string]int)
	for _, label := range clusters {
		sizes[label]++
	}
	labels := make([]string, 0, len(sizes))
	for label := range sizes {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if sizes[labels[i]] != sizes[labels[j]] {
			return sizes[labels[i]] > sizes[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) > 0 {
		fmt.Println("\nclusters:")
		for _, label := range labels {
			fmt.Printf("  %s (%d)\n", label, sizes[label])
		}
	}
	return nil
}

// --- reclassify command ---

var reclassifyBatch int

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify",
	Short: "Run one reclassification sweep over offline memories",
	RunE:  runReclassify,
}

func init() {
	reclassifyCmd.Flags().IntVarP(&reclassifyBatch, "batch", "b", 5, "Maximum memories to revisit")
}

func runReclassify(cmd *cobra.Command, args []string) error {
	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()
	defer eng.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := eng.ReclassifySweep(ctx, reclassifyBatch)
	if err != nil {
		return fmt.Errorf("reclassify: %w", err)
	}
	fmt.Printf("upgraded %d memories\n", n)
	return nil
}
