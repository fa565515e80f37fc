package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Ramdan0505/radlab-preinvest/internal/config"
	"github.com/Ramdan0505/radlab-preinvest/internal/logging"
	"github.com/Ramdan0505/radlab-preinvest/internal/pipeline"
	"github.com/Ramdan0505/radlab-preinvest/internal/playbook"
	"github.com/Ramdan0505/radlab-preinvest/internal/semantic"
	"github.com/Ramdan0505/radlab-preinvest/internal/store"
	"github.com/Ramdan0505/radlab-preinvest/internal/triage"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "radtriage",
	Short: "DFIR pre-investigation triage core",
	Long: `radtriage normalizes forensic bundles (event logs, registry hives and
exports) into per-case artifact stores, ranks suspicious indicators with a
deterministic heuristic model, and serves semantic retrieval over the
normalized corpora.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml, /etc/radlab/config.yaml)")
	rootCmd.PersistentFlags().String("case", "", "case identifier")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log = logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)
}

// requireCaseID resolves the --case flag without touching the case
// directory. Read-only commands use it so a mistyped case id does not
// materialize an empty case on disk.
func requireCaseID(cmd *cobra.Command) (string, error) {
	caseID, _ := cmd.Flags().GetString("case")
	if caseID == "" {
		return "", fmt.Errorf("--case is required")
	}
	return caseID, nil
}

// requireCase resolves the --case flag and opens that case's store.
func requireCase(cmd *cobra.Command) (string, *store.Store, error) {
	caseID, err := requireCaseID(cmd)
	if err != nil {
		return "", nil, err
	}
	st, err := store.Open(filepath.Join(cfg.Cases.Dir, caseID), log.WithCase(caseID))
	if err != nil {
		return "", nil, err
	}
	return caseID, st, nil
}

func buildSemantic() (*semantic.Service, error) {
	var vectors semantic.VectorStore
	if cfg.Semantic.DBPath != "" {
		sqlite, err := semantic.NewSQLiteStore(cfg.Semantic.DBPath)
		if err != nil {
			return nil, err
		}
		vectors = sqlite
	} else {
		vectors = semantic.NewMemoryStore()
	}

	factory := func() (semantic.Embedder, error) {
		return semantic.NewHTTPEmbedder(cfg.Semantic.EmbedderURL), nil
	}
	return semantic.NewService(factory, vectors, cfg.Semantic.MaxDistance, cfg.Semantic.TopK, log), nil
}

func buildPipeline() (*pipeline.Pipeline, error) {
	rules, err := triage.LoadRules(cfg.Triage.RulesPath)
	if err != nil {
		return nil, err
	}

	svc, err := buildSemantic()
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Options{
		Engine:   triage.NewEngine(rules, cfg.Pipeline.MaxEventCandidates, log),
		Renderer: playbook.New(),
		Semantic: svc,
		Workers:  cfg.Pipeline.Workers,
		Logger:   log,
	})
}
