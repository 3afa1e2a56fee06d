package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/config"
	"github.com/caseforge/caseforge/generate"
	"github.com/caseforge/caseforge/metrics"
	"github.com/caseforge/caseforge/scenario"
	"github.com/caseforge/caseforge/store"
	"github.com/caseforge/caseforge/tasks"
	"github.com/caseforge/caseforge/tenancy"
)

// scopeFlags binds the tenant/workspace pair every command needs.
type scopeFlags struct {
	tenant    string
	workspace string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tenant, "tenant", "", "tenant id (required)")
	cmd.Flags().StringVar(&f.workspace, "workspace", "", "workspace id (required)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("workspace")
}

func (f *scopeFlags) scope() (tenancy.Scope, error) {
	s := tenancy.Scope{TenantID: f.tenant, WorkspaceID: f.workspace}
	return s, s.Validate()
}

func openStore(cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	return store.Open(cfg.Database.Driver, cfg.Database.DSN, store.PoolConfig{
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, store.WithLogger(logger))
}

func newService(cfg *config.Config, st *store.Store, logger *slog.Logger) *generate.Service {
	client := scenario.NewClient(scenario.Endpoint{
		Provider: cfg.Provider.Name,
		URL:      cfg.Provider.URL,
		Model:    cfg.Provider.Model,
	},
		scenario.WithTimeout(cfg.Provider.Timeout),
		scenario.WithLogger(logger),
	)
	gen := scenario.NewGenerator(client, scenario.WithGeneratorLogger(logger))
	orch := generate.NewOrchestrator(gen,
		generate.WithBatchSize(cfg.Generation.BatchSize),
		generate.WithBatchDelay(cfg.Generation.BatchDelay),
		generate.WithOrchestratorLogger(logger),
	)
	return generate.NewService(st, orch, generate.WithServiceLogger(logger))
}

func connectJetStream(cfg *config.Config) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name(appName))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("get jetstream: %w", err)
	}
	return nc, js, nil
}

// generationInput assembles a generate.Input from flags, backfilling
// defaults from the config.
func generationInput(cfg *config.Config, cases, perCase int, types []string, noAI bool) generate.Input {
	if cases == 0 {
		cases = cfg.Generation.DefaultTestCases
	}
	if perCase == 0 {
		perCase = cfg.Generation.DefaultScenariosPerCase
	}
	if len(types) == 0 {
		types = cfg.Generation.DefaultTestTypes
	}
	testTypes := make([]asset.TestType, 0, len(types))
	for _, t := range types {
		testTypes = append(testTypes, asset.ParseTestType(t))
	}
	return generate.Input{
		NumTestCases:     cases,
		ScenariosPerCase: perCase,
		TestTypes:        testTypes,
		UseAI:            !noAI,
	}
}

func generateCmd(app *appContext) *cobra.Command {
	var (
		scopeF  scopeFlags
		storyID string
		cases   int
		perCase int
		types   []string
		noAI    bool
		commit  bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate test-case suggestions for a story",
		Long: `Generate runs the synchronous generation path: provider batches run one
at a time with an inter-batch delay. Without --commit the rendered
suggestions are printed and nothing is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.loadConfig()
			if err != nil {
				return err
			}
			scope, err := scopeF.scope()
			if err != nil {
				return err
			}

			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			svc := newService(cfg, st, logger)
			in := generationInput(cfg, cases, perCase, types, noAI)
			ctx := cmd.Context()

			if commit && in.NumTestCases == 1 {
				tc, err := svc.CommitSingle(ctx, scope, storyID, in)
				if err != nil {
					return err
				}
				fmt.Printf("Committed %s\n\n%s", tc.CaseID, tc.ScenarioText)
				return nil
			}

			sug, err := svc.Preview(ctx, scope, storyID, in)
			if err != nil {
				return err
			}
			if sug.ProviderEmpty {
				fmt.Fprintln(os.Stderr, "warning: provider returned no scenarios, suggestions use fallback templates")
			}

			if !commit {
				for i, item := range sug.Items {
					if i > 0 {
						fmt.Println()
					}
					fmt.Print(item.FeatureText)
				}
				return nil
			}

			items := make([]generate.ReviewedSuggestion, 0, len(sug.Items))
			for _, item := range sug.Items {
				items = append(items, generate.ReviewedSuggestion{
					Title:       item.Title,
					TestType:    item.TestType,
					FeatureText: item.FeatureText,
					GeneratedAI: in.UseAI && !item.FromFallback,
				})
			}
			tcs, err := svc.CommitBatch(ctx, scope, storyID, items)
			if err != nil {
				return err
			}
			for _, tc := range tcs {
				fmt.Printf("Committed %s (%s)\n", tc.CaseID, tc.TestType)
			}
			return nil
		},
	}

	scopeF.register(cmd)
	cmd.Flags().StringVar(&storyID, "story", "", "story id (required)")
	_ = cmd.MarkFlagRequired("story")
	cmd.Flags().IntVar(&cases, "cases", 0, "number of test cases, 1-10 (default from config)")
	cmd.Flags().IntVar(&perCase, "per-case", 0, "scenarios per test case, 1-10 (default from config)")
	cmd.Flags().StringSliceVar(&types, "types", nil, "test types cycled across cases: functional,ui,api,other")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip the provider, use fallback templates only")
	cmd.Flags().BoolVar(&commit, "commit", false, "persist the generated test cases")
	return cmd
}

func workerCmd(app *appContext) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background generation worker",
		Long: `Worker consumes queued generation tasks from NATS JetStream, runs
provider batches concurrently, and records progress in the task bucket
for pollers. Runs until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.loadConfig()
			if err != nil {
				return err
			}

			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			nc, js, err := connectJetStream(cfg)
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx := cmd.Context()
			taskStore, err := tasks.NewStore(ctx, js)
			if err != nil {
				return err
			}

			runner := tasks.NewRunner(taskStore, tasks.NewQueue(js), newService(cfg, st, logger),
				tasks.WithTaskTimeout(cfg.Generation.TaskTimeout),
				tasks.WithRunnerLogger(logger),
			)
			if err := runner.Start(ctx); err != nil {
				return err
			}

			metricsSrv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
			go func() {
				if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Metrics server failed", "addr", metricsAddr, "error", err)
				}
			}()
			logger.Info("Metrics listening", "addr", metricsAddr)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			logger.Info("Shutting down")
			runner.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address for the Prometheus metrics endpoint")
	return cmd
}

func taskCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Enqueue and inspect background generation tasks",
	}
	cmd.AddCommand(taskEnqueueCmd(app), taskStatusCmd(app), taskListCmd(app))
	return cmd
}

func taskEnqueueCmd(app *appContext) *cobra.Command {
	var (
		scopeF  scopeFlags
		storyID string
		cases   int
		perCase int
		types   []string
		noAI    bool
		commit  bool
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a generation task for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig()
			if err != nil {
				return err
			}
			scope, err := scopeF.scope()
			if err != nil {
				return err
			}

			nc, js, err := connectJetStream(cfg)
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx := cmd.Context()
			taskStore, err := tasks.NewStore(ctx, js)
			if err != nil {
				return err
			}
			queue := tasks.NewQueue(js)
			if err := queue.EnsureStream(ctx); err != nil {
				return err
			}

			task := tasks.NewTask(scope, storyID, generationInput(cfg, cases, perCase, types, noAI), commit)
			if err := taskStore.Create(ctx, task); err != nil {
				return err
			}
			if err := queue.Enqueue(ctx, task.ID); err != nil {
				return err
			}

			fmt.Println(task.ID)
			return nil
		},
	}

	scopeF.register(cmd)
	cmd.Flags().StringVar(&storyID, "story", "", "story id (required)")
	_ = cmd.MarkFlagRequired("story")
	cmd.Flags().IntVar(&cases, "cases", 0, "number of test cases, 1-10 (default from config)")
	cmd.Flags().IntVar(&perCase, "per-case", 0, "scenarios per test case, 1-10 (default from config)")
	cmd.Flags().StringSliceVar(&types, "types", nil, "test types cycled across cases")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip the provider, use fallback templates only")
	cmd.Flags().BoolVar(&commit, "commit", false, "persist the generated test cases when the task runs")
	return cmd
}

func taskStatusCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the status and progress of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig()
			if err != nil {
				return err
			}

			nc, js, err := connectJetStream(cfg)
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx := cmd.Context()
			taskStore, err := tasks.NewStore(ctx, js)
			if err != nil {
				return err
			}
			task, err := taskStore.Get(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Task:     %s\n", task.ID)
			fmt.Printf("Scope:    %s\n", task.Scope)
			fmt.Printf("Story:    %s\n", task.StoryID)
			fmt.Printf("Status:   %s\n", task.Status)
			fmt.Printf("Progress: %d%%", task.Progress)
			if task.Message != "" {
				fmt.Printf(" (%s)", task.Message)
			}
			fmt.Println()
			if task.Error != "" {
				fmt.Printf("Error:    %s\n", task.Error)
			}
			if task.Result != nil {
				if task.Result.Suggestions != nil {
					fmt.Printf("Suggestions: %d\n", len(task.Result.Suggestions.Items))
					if task.Result.Suggestions.ProviderEmpty {
						fmt.Println("Warning:  provider returned no scenarios, fallback templates used")
					}
				}
				for _, id := range task.Result.CaseIDs {
					fmt.Printf("Committed: %s\n", id)
				}
			}
			return nil
		},
	}
}

func taskListCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig()
			if err != nil {
				return err
			}

			nc, js, err := connectJetStream(cfg)
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx := cmd.Context()
			taskStore, err := tasks.NewStore(ctx, js)
			if err != nil {
				return err
			}
			all, err := taskStore.List(ctx)
			if err != nil {
				return err
			}
			for _, task := range all {
				fmt.Printf("%s  %-8s  %3d%%  %s %s\n", task.ID, task.Status, task.Progress, task.Scope, task.StoryID)
			}
			return nil
		},
	}
}

// storyFile is the YAML layout accepted by the import command.
type storyFile struct {
	Stories []struct {
		StoryID     string                      `yaml:"story_id"`
		Title       string                      `yaml:"title"`
		Description string                      `yaml:"description"`
		Criteria    []asset.AcceptanceCriterion `yaml:"criteria"`
	} `yaml:"stories"`
}

func importCmd(app *appContext) *cobra.Command {
	var (
		scopeF scopeFlags
		file   string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert stories into a workspace from a YAML file",
		Long: `Import reads stories from a YAML file and upserts them into the given
workspace. Re-importing a story id updates it in place; rows are never
duplicated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.loadConfig()
			if err != nil {
				return err
			}
			scope, err := scopeF.scope()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read story file: %w", err)
			}
			var sf storyFile
			if err := yaml.Unmarshal(data, &sf); err != nil {
				return fmt.Errorf("parse story file: %w", err)
			}

			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ctx := cmd.Context()
			for _, entry := range sf.Stories {
				story := &asset.Story{
					TenantID:    scope.TenantID,
					WorkspaceID: scope.WorkspaceID,
					StoryID:     entry.StoryID,
					Title:       entry.Title,
					Description: entry.Description,
					Criteria:    entry.Criteria,
				}
				if err := st.UpsertStory(ctx, story); err != nil {
					return fmt.Errorf("story %s: %w", entry.StoryID, err)
				}
			}

			fmt.Printf("Imported %d stories into %s\n", len(sf.Stories), scope)
			return nil
		},
	}

	scopeF.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", "YAML file with stories (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func workspaceCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage workspaces",
	}

	var (
		createF     scopeFlags
		name        string
		description string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.loadConfig()
			if err != nil {
				return err
			}
			scope, err := createF.scope()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ws := &asset.Workspace{
				TenantID:    scope.TenantID,
				WorkspaceID: scope.WorkspaceID,
				Name:        name,
				Description: description,
			}
			if err := st.CreateWorkspace(cmd.Context(), ws); err != nil {
				return err
			}
			fmt.Printf("Created workspace %s\n", scope)
			return nil
		},
	}
	createF.register(create)
	create.Flags().StringVar(&name, "name", "", "workspace display name")
	create.Flags().StringVar(&description, "description", "", "workspace description")

	var listTenant string
	list := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			wss, err := st.ListWorkspaces(cmd.Context(), listTenant)
			if err != nil {
				return err
			}
			for _, ws := range wss {
				fmt.Printf("%-20s  %s\n", ws.WorkspaceID, ws.Name)
			}
			return nil
		},
	}
	list.Flags().StringVar(&listTenant, "tenant", "", "tenant id (required)")
	_ = list.MarkFlagRequired("tenant")

	var deleteF scopeFlags
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a workspace and every asset in it",
		Long: `Delete removes the workspace and cascades to all stories, test cases,
bugs, executions and comments sharing its tenant/workspace pair, and
only those.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.loadConfig()
			if err != nil {
				return err
			}
			scope, err := deleteF.scope()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.DeleteWorkspace(cmd.Context(), scope); err != nil {
				return err
			}
			fmt.Printf("Deleted workspace %s\n", scope)
			return nil
		},
	}
	deleteF.register(del)

	cmd.AddCommand(create, list, del)
	return cmd
}

func migrateCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.AutoMigrate(); err != nil {
				return err
			}
			fmt.Println("Schema up to date")
			return nil
		},
	}
}
