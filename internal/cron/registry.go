package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of scheduled work. Name labels logs and metrics.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in the order they run.
type Registry struct {
	jobs []Job
}

// NewRegistry registers jobs in order. Nil entries are skipped; a duplicate
// or blank name panics since it is a wiring mistake.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job name required")
	}
	if r.lookup(name) != nil {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) lookup(name string) Job {
	for _, job := range r.jobs {
		if job.Name() == name {
			return job
		}
	}
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
