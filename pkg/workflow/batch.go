package workflow

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/askiada/emflow/pkg/config"
	"github.com/askiada/emflow/pkg/pipeline/model"
)

// BatchFile lists the jobs of a batch.
type BatchFile struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadJobs reads a batch file. Relative paths are resolved against the
// directory of the file.
func LoadJobs(path string) ([]Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read batch file %s", path)
	}

	b := &BatchFile{}

	err = yaml.Unmarshal(raw, b)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode batch file %s", path)
	}

	dir := filepath.Dir(path)
	for i := range b.Jobs {
		b.Jobs[i].Source = resolvePath(dir, b.Jobs[i].Source)
		b.Jobs[i].Workspace = resolvePath(dir, b.Jobs[i].Workspace)
		b.Jobs[i].OutputDir = resolvePath(dir, b.Jobs[i].OutputDir)
	}

	return b.Jobs, nil
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(dir, path)
}

// RunBatch runs the jobs concurrently, at most limit at a time. Each job
// without an output directory gets <outputDir>/<component>. Results follow
// the order of jobs; a failed workflow is reported in its result, only a job
// that cannot be built returns an error.
func RunBatch(ctx context.Context, cfg *config.Config, jobs []Job, limit int, opts ...Option) ([]*model.Result, error) {
	if cfg == nil {
		return nil, ErrConfigMustBeSet
	}

	seen := make(map[string]struct{}, len(jobs))
	for i := range jobs {
		err := jobs[i].validate()
		if err != nil {
			return nil, err
		}

		if _, ok := seen[jobs[i].Component]; ok {
			return nil, errors.Wrapf(ErrDuplicateComponent, "%s", jobs[i].Component)
		}

		seen[jobs[i].Component] = struct{}{}
	}

	if limit < 1 {
		limit = 1
	}

	results := make([]*model.Result, len(jobs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, job := range jobs {
		i, job := i, job

		if job.OutputDir == "" {
			job.OutputDir = filepath.Join(cfg.OutputDir, job.Component)
		}

		g.Go(func() error {
			res, err := Run(gCtx, cfg, job, opts...)
			if err != nil {
				return errors.Wrapf(err, "unable to run %s", job.Component)
			}

			results[i] = res

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return results, err
	}

	return results, nil
}
