// Package orchestrator drives a run: it walks the enabled entities in
// dependency order, threads the run Context through their strategies,
// and aggregates per-entity results. Non-fatal entity failures are
// recorded and the run continues; fatal failures abort immediately.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/config"
	"github.com/repovault/repovault/internal/entity"
	"github.com/repovault/repovault/internal/model"
	"github.com/repovault/repovault/internal/strategy"
	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/idgen"
	"github.com/repovault/repovault/pkg/logger"
)

// Result is the outcome of one entity within a run
type Result struct {
	Entity  string
	Success bool
	Count   int
	Err     error
}

// Orchestrator owns one configured run
type Orchestrator struct {
	cfg *config.Config
	reg *entity.Registry
	svc *entity.Services
}

// New builds an Orchestrator over a loaded registry and service bag
func New(cfg *config.Config, reg *entity.Registry, svc *entity.Services) *Orchestrator {
	return &Orchestrator{cfg: cfg, reg: reg, svc: svc}
}

// newRunContext seeds the run Context from configuration and enablement
func (o *Orchestrator) newRunContext() *strategy.Context {
	rc := strategy.NewContext()
	rc.Enablement = o.reg.EnablementMap()
	rc.IncludeOriginalMetadata = o.cfg.IncludeOriginalMetadata
	rc.ConflictStrategy = o.cfg.LabelConflictStrategy
	return rc
}

// banner prints the run header with the enabled entity list
func (o *Orchestrator) banner(operation string) {
	title := color.New(color.FgCyan, color.Bold)
	title.Printf("%s %s\n", consts.ProjectName, consts.Version)
	fmt.Printf("%s %s\n", operation, o.cfg.Repo.String())

	fmt.Print("entities:")
	for _, d := range o.reg.EnabledEntities() {
		fmt.Printf(" %s", d.Name)
	}
	fmt.Println()
}

// summary prints the completion block
func summary(results []Result) {
	failed := 0
	total := 0
	for _, r := range results {
		if r.Success {
			total += r.Count
		} else {
			failed++
		}
	}

	if failed == 0 {
		color.New(color.FgGreen).Printf("completed: %d records across %d entities\n", total, len(results))
		return
	}

	color.New(color.FgRed, color.Bold).Println("completed with errors:")
	for _, r := range results {
		if !r.Success {
			color.New(color.FgRed).Printf("  %s: %v\n", r.Entity, r.Err)
		}
	}
}

// checkServices verifies the declaration's required services are present
func (o *Orchestrator) checkServices(d entity.Declaration, required []string) error {
	for _, name := range required {
		if !o.svc.Has(name) {
			return errors.ErrConfig(fmt.Sprintf(
				"entity %q requires unavailable service %q", d.Name, name))
		}
	}
	return nil
}

// Save mirrors the repository into the run directory
func (o *Orchestrator) Save(ctx context.Context) ([]Result, error) {
	o.banner("saving")
	rc := o.newRunContext()

	var results []Result
	counts := make(map[string]int)

	for _, d := range o.reg.EnabledEntities() {
		if err := o.checkServices(d, d.RequiredServicesSave); err != nil {
			return results, err
		}
		saver, err := d.NewSaver(o.svc)
		if err != nil {
			return results, err
		}

		logger.Info("Saving entity", zap.String("entity", d.Name))
		count, err := saver.Save(ctx, rc)
		if err != nil {
			results = append(results, Result{Entity: d.Name, Err: err})
			if errors.IsFatal(err) {
				summary(results)
				return results, err
			}
			logger.Error("Entity save failed, continuing",
				zap.String("entity", d.Name),
				zap.Error(err),
			)
			continue
		}

		counts[d.Name] = count
		results = append(results, Result{Entity: d.Name, Success: true, Count: count})
	}

	manifest := model.Manifest{
		RunID:     idgen.NewRunID(),
		Repo:      o.cfg.Repo.String(),
		CreatedAt: time.Now().UTC(),
		Counts:    counts,
	}
	if err := o.svc.Storage.WriteJSON(consts.ManifestFile, manifest); err != nil {
		return results, err
	}

	summary(results)
	return results, nil
}

// Restore reconstructs the repository from the run directory. The
// target repository must exist, or be creatable when configured so.
func (o *Orchestrator) Restore(ctx context.Context) ([]Result, error) {
	o.banner("restoring")

	if err := o.ensureRepository(ctx); err != nil {
		return nil, err
	}

	rc := o.newRunContext()
	var results []Result

	for _, d := range o.reg.EnabledEntities() {
		if err := o.checkServices(d, d.RequiredServicesRestore); err != nil {
			return results, err
		}
		restorer, err := d.NewRestorer(o.svc)
		if err != nil {
			return results, err
		}

		logger.Info("Restoring entity", zap.String("entity", d.Name))
		count, err := restorer.Restore(ctx, rc)
		if err != nil {
			results = append(results, Result{Entity: d.Name, Count: count, Err: err})
			if errors.IsFatal(err) {
				summary(results)
				return results, err
			}
			logger.Error("Entity restore failed, continuing",
				zap.String("entity", d.Name),
				zap.Error(err),
			)
			continue
		}

		results = append(results, Result{Entity: d.Name, Success: true, Count: count})
	}

	summary(results)
	return results, nil
}

// ensureRepository gates the restore on target repository existence
func (o *Orchestrator) ensureRepository(ctx context.Context) error {
	exists, err := o.svc.API.RepositoryExists(ctx, o.cfg.Repo)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if !o.cfg.CreateRepositoryIfMissing {
		return errors.ErrConfig(fmt.Sprintf(
			"repository %s does not exist and CREATE_REPOSITORY_IF_MISSING is not set", o.cfg.Repo))
	}

	private := o.cfg.RepositoryVisibility != "public"
	logger.Info("Creating target repository",
		zap.String("repo", o.cfg.Repo.String()),
		zap.Bool("private", private),
	)
	_, err = o.svc.API.CreateRepository(ctx, o.cfg.Repo, private,
		fmt.Sprintf("Restored by %s", consts.ProjectName))
	return err
}

// Failed reports whether any entity in results failed
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Success {
			return true
		}
	}
	return false
}
