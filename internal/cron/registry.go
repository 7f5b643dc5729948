package cron

import (
	"context"
	"slices"
)

// Result reports what one job run removed.
type Result struct {
	RowsDeleted int64
}

// Job is a maintenance task. Each cycle calls Run once per job, in
// registration order.
type Job interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := new(Registry)
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register ignores nil jobs.
func (r *Registry) Register(job Job) {
	if job != nil {
		r.jobs = append(r.jobs, job)
	}
}

func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}
