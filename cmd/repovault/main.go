// Package main is the entry point for the RepoVault application.
// RepoVault mirrors a GitHub repository (issues, pull requests,
// releases, git data) into a local snapshot and restores it later.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/internal/convert"
	"github.com/repovault/repovault/internal/entity"
	"github.com/repovault/repovault/internal/gitrepo"
	"github.com/repovault/repovault/internal/github"
	"github.com/repovault/repovault/internal/orchestrator"
	"github.com/repovault/repovault/internal/storage"
	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/logger"

	// Import entity implementations to register them
	_ "github.com/repovault/repovault/internal/entities/all"
)

// Build information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// init synchronizes build info to consts package for global access
func init() {
	consts.Version = Version
	consts.BuildTime = BuildTime
	consts.GitCommit = GitCommit
}

var (
	configPath string
	dataPath   string
	repoFlag   string
	schedule   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "repovault",
	Short: "RepoVault - GitHub repository mirroring and restore",
	Long: `RepoVault saves a complete snapshot of a GitHub repository (labels,
milestones, issues, comments, sub-issues, pull requests, reviews,
releases with assets, and the git data itself) and restores it into a
new repository later.`,
}

// saveCmd mirrors the repository into the data directory
var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a repository snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		if schedule != "" {
			runScheduled()
			return
		}
		os.Exit(execute(consts.OperationSave))
	},
}

// restoreCmd reconstructs the repository from the data directory
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a repository from a snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(execute(consts.OperationRestore))
	},
}

// runCmd dispatches on the OPERATION environment variable, the
// container-friendly entry point.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the operation named by the OPERATION environment variable",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(execute(""))
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", consts.ProjectName, Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file path (optional, env wins)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "data directory (overrides DATA_PATH)")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "repository as owner/name (overrides GITHUB_REPO)")

	saveCmd.Flags().StringVar(&schedule, "schedule", "", "cron expression for periodic saves")

	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errors.ExitCodeFailure)
	}
}

// setup loads configuration, initializes logging, and wires the
// service bag and entity registry for one run.
func setup(operation string) (*config.Config, *entity.Registry, *entity.Services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if operation != "" {
		cfg.Operation = operation
	}
	if dataPath != "" {
		cfg.DataPath = dataPath
	}
	if repoFlag != "" {
		repo, err := config.ParseRepo(repoFlag)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg.Repo = repo
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if cfg.Operation == "" {
		return nil, nil, nil, errors.ErrConfig(config.EnvOperation + " is required (save or restore)")
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return nil, nil, nil, err
	}

	if err := convert.ValidateAll(); err != nil {
		return nil, nil, nil, err
	}
	reg, err := entity.Load(os.LookupEnv)
	if err != nil {
		return nil, nil, nil, err
	}

	api, err := github.NewClient(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	svc := &entity.Services{
		API:     api,
		Storage: storage.NewFileStore(cfg.DataPath),
		Git:     gitrepo.NewExecService(cfg.Token),
		Config:  cfg,
	}
	return cfg, reg, svc, nil
}

// execute runs one save or restore and returns the process exit code
func execute(operation string) int {
	cfg, reg, svc, err := setup(operation)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return errors.ExitCodeFailure
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := orchestrator.New(cfg, reg, svc)

	var results []orchestrator.Result
	switch cfg.Operation {
	case consts.OperationSave:
		results, err = o.Save(ctx)
	case consts.OperationRestore:
		results, err = o.Restore(ctx)
	}
	if err != nil {
		logger.Error("Run aborted", zap.Error(err))
		return errors.ExitCodeFailure
	}
	if orchestrator.Failed(results) {
		return errors.ExitCodeFailure
	}
	return errors.ExitCodeOK
}

// runScheduled runs saves on a cron schedule until interrupted
func runScheduled() {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if code := execute(consts.OperationSave); code != errors.ExitCodeOK {
			logger.Warn("Scheduled save finished with errors")
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid schedule %q: %v\n", schedule, err)
		os.Exit(errors.ExitCodeFailure)
	}

	c.Start()
	logger.Info("Scheduler started", zap.String("schedule", schedule))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	ctx := c.Stop()
	<-ctx.Done()
}
