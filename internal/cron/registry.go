package cron

import "context"

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order. A second job with a name
// already present is ignored so metrics labels stay unique.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{names: make(map[string]struct{}, len(jobs))}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register reports whether job was added.
func (r *Registry) Register(job Job) bool {
	if job == nil {
		return false
	}
	if _, dup := r.names[job.Name()]; dup {
		return false
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return true
}

func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
