package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/formpilot/formpilot/internal/browser"
	"github.com/formpilot/formpilot/internal/config"
	"github.com/formpilot/formpilot/internal/engine"
	"github.com/formpilot/formpilot/internal/layers"
	"github.com/formpilot/formpilot/internal/manual"
	"github.com/formpilot/formpilot/internal/manualstore"
	"github.com/formpilot/formpilot/internal/vision"
)

var (
	cfgPath     string
	profilePath string
	taskType    string
	platform    string
	goal        string
	budget      float64
	provider    string
	model       string
	headless    bool
	timeout     time.Duration
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "formpilot",
		Short: "Fill web forms automatically with a self-improving action cache",
		Long: `formpilot drives a browser through web forms (job applications) using
cached interaction manuals when available and an escalating stack of
automation layers when not. Successful runs are recorded back into the
cache so the next identical-shaped form is nearly free.`,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config")

	runCmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Fill the form at the given URL",
		Args:  cobra.ExactArgs(1),
		RunE:  runTask,
	}
	runCmd.Flags().StringVar(&profilePath, "profile", "profile.json", "JSON file with applicant field/value pairs")
	runCmd.Flags().StringVar(&taskType, "task", "job_application", "Task type key for manual lookup")
	runCmd.Flags().StringVar(&platform, "platform", "", "Platform tag (workday, greenhouse, ...)")
	runCmd.Flags().StringVar(&goal, "goal", "", "Free-form task description for the vision layer")
	runCmd.Flags().Float64Var(&budget, "budget", 0, "Per-task cost budget in dollars (default from config)")
	runCmd.Flags().StringVar(&provider, "provider", "", "Vision provider: claude, openai")
	runCmd.Flags().StringVar(&model, "model", "", "Specific model override")
	runCmd.Flags().BoolVar(&headless, "headless", true, "Run the browser headless")
	runCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall task timeout")

	manualsCmd := &cobra.Command{
		Use:   "manuals",
		Short: "Inspect the manual cache",
	}
	manualsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached manuals",
			RunE:  listManuals,
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print one manual as JSON",
			Args:  cobra.ExactArgs(1),
			RunE:  showManual,
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a manual",
			Args:  cobra.ExactArgs(1),
			RunE:  removeManual,
		},
	)

	importCmd := &cobra.Command{
		Use:   "import <catalog.json>",
		Short: "Convert a third-party action catalog into cached manuals",
		Args:  cobra.ExactArgs(1),
		RunE:  importCatalog,
	}

	rootCmd.AddCommand(runCmd, manualsCmd, importCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTask(cmd *cobra.Command, args []string) error {
	url := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if budget > 0 {
		cfg.Execution.Budget = budget
	}
	if provider != "" {
		cfg.Vision.Provider = provider
	}
	if model != "" {
		cfg.Vision.Model = model
	}
	cfg.Browser.Headless = headless

	log, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	profile, err := loadProfile(profilePath)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	visionProvider, err := vision.NewProvider(cfg.Vision.Provider, cfg.Vision.Model)
	if err != nil {
		return fmt.Errorf("vision provider init: %w", err)
	}

	fmt.Printf("→ Opening %s... ", url)
	b, err := browser.Launch(url, browser.Options{
		Width:      cfg.Browser.Width,
		Height:     cfg.Browser.Height,
		Headless:   cfg.Browser.Headless,
		ProfileDir: cfg.Browser.ProfileDir,
	})
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("browser launch: %w", err)
	}
	defer b.Close()
	fmt.Println("done")

	stack := []layers.Hand{
		layers.DOMLayer{},
		layers.VisionLayer{
			Provider:   visionProvider,
			Snapshot:   browser.Snapshot,
			Screenshot: browser.Screenshot,
		},
	}
	orch := layers.NewOrchestrator(stack, nil, cfg.Execution.MaxPages, log)
	eng := engine.New(store, orch, log)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Println("→ Running...")
	res := eng.Execute(ctx, engine.Params{
		Page:     b.Page(),
		URL:      url,
		TaskType: taskType,
		Platform: platform,
		Goal:     goal,
		Profile:  profile,
		Budget:   cfg.Execution.Budget,
	})

	fmt.Printf("✓ mode=%s success=%v pages=%d actions=%d verified=%d failed=%d cost=$%.2f\n",
		res.Mode, res.Success, res.PagesProcessed,
		res.ActionsExecuted, res.ActionsVerified, res.ActionsFailed, res.TotalCost)
	for _, e := range res.Errors {
		fmt.Printf("  ! %s\n", e)
	}
	if !res.Success {
		return fmt.Errorf("task did not complete (%s)", res.State)
	}
	return nil
}

func listManuals(cmd *cobra.Command, args []string) error {
	store, log, err := storeFromConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	all, err := store.GetAll()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("no manuals cached")
		return nil
	}
	for _, m := range all {
		fmt.Printf("%s  health=%.2f  steps=%d  %s  [%s/%s]\n",
			m.ID, m.HealthScore, len(m.Steps), m.URLPattern, m.TaskPattern, m.Platform)
	}
	return nil
}

func showManual(cmd *cobra.Command, args []string) error {
	store, log, err := storeFromConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	all, err := store.GetAll()
	if err != nil {
		return err
	}
	for _, m := range all {
		if m.ID == args[0] {
			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
	}
	return fmt.Errorf("no manual with id %s", args[0])
}

func removeManual(cmd *cobra.Command, args []string) error {
	store, log, err := storeFromConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ok, err := store.Remove(args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no manual with id %s", args[0])
	}
	fmt.Println("removed")
	return nil
}

func importCatalog(cmd *cobra.Command, args []string) error {
	store, log, err := storeFromConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var entries []manual.CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	imported := 0
	for i, entry := range entries {
		m, err := manual.FromCatalog(entry)
		if err != nil {
			fmt.Printf("  ! entry %d skipped: %v\n", i, err)
			continue
		}
		if err := store.Save(m); err != nil {
			fmt.Printf("  ! entry %d not saved: %v\n", i, err)
			continue
		}
		imported++
	}
	fmt.Printf("imported %d of %d catalog entries\n", imported, len(entries))
	return nil
}

func storeFromConfig() (manualstore.Store, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return store, log, nil
}

func openStore(cfg *config.Config, log *zap.Logger) (manualstore.Store, error) {
	switch cfg.Store.Kind {
	case "memory":
		return manualstore.NewMemory(), nil
	case "file":
		return manualstore.NewFile(cfg.Store.Path, log)
	default:
		return manualstore.NewSQLite(cfg.Store.Path, log)
	}
}

func loadProfile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var profile map[string]string
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return profile, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
