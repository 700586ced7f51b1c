package handler

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/careerboard/internal/model"
	"github.com/hitoshi/careerboard/internal/repository"
)

// memStore はルーター経由のシナリオテスト用のインメモリストア。
// メールアドレスと (job_id, candidate_id) の一意性をPostgreSQLと同様に強制する。
type memStore struct {
	mu           sync.Mutex
	candidates   map[string]*model.Candidate
	employers    map[string]*model.Employer
	jobs         map[string]*model.Job
	applications map[string]*model.Application
	order        []string
}

func newMemStore() *memStore {
	return &memStore{
		candidates:   make(map[string]*model.Candidate),
		employers:    make(map[string]*model.Employer),
		jobs:         make(map[string]*model.Job),
		applications: make(map[string]*model.Application),
	}
}

type memCandidates struct{ s *memStore }
type memEmployers struct{ s *memStore }
type memJobs struct{ s *memStore }
type memApplications struct{ s *memStore }

func (r memCandidates) FindByID(_ context.Context, id string) (*model.Candidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.candidates[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r memCandidates) FindByEmail(_ context.Context, email string) (*model.Candidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.candidates {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memCandidates) FindByFederatedID(_ context.Context, federatedID string) (*model.Candidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.candidates {
		if c.FederatedID != "" && c.FederatedID == federatedID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memCandidates) Create(_ context.Context, c *model.Candidate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.candidates {
		if existing.Email == c.Email {
			return repository.ErrDuplicate
		}
		if c.FederatedID != "" && existing.FederatedID == c.FederatedID {
			return repository.ErrDuplicate
		}
	}
	cp := *c
	r.s.candidates[c.ID] = &cp
	return nil
}

func (r memCandidates) UpdateProfile(_ context.Context, c *model.Candidate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.candidates[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.DisplayName = c.DisplayName
	existing.AvatarURL = c.AvatarURL
	existing.Profile = c.Profile
	existing.UpdatedAt = c.UpdatedAt
	return nil
}

func (r memCandidates) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.candidates[id]
	if !ok {
		return repository.ErrNotFound
	}
	existing.PasswordHash = hash
	return nil
}

func (r memEmployers) FindByID(_ context.Context, id string) (*model.Employer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.employers[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r memEmployers) FindByEmail(_ context.Context, email string) (*model.Employer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.employers {
		if e.Email == email {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memEmployers) Create(_ context.Context, e *model.Employer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.employers {
		if existing.Email == e.Email {
			return repository.ErrDuplicate
		}
	}
	cp := *e
	r.s.employers[e.ID] = &cp
	return nil
}

func (r memJobs) FindByID(_ context.Context, id string) (*model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if j, ok := r.s.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (r memJobs) Create(_ context.Context, j *model.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *j
	r.s.jobs[j.ID] = &cp
	return nil
}

func (r memJobs) ListActive(_ context.Context, limit int) ([]*model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Job
	for _, j := range r.s.jobs {
		if j.Status == model.JobStatusActive {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memApplications) FindByJobAndCandidate(_ context.Context, jobID, candidateID string) (*model.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.applications {
		if a.JobID == jobID && a.CandidateID == candidateID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memApplications) FindByID(_ context.Context, id string) (*model.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.applications[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (r memApplications) Create(_ context.Context, app *model.Application) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.applications {
		if a.JobID == app.JobID && a.CandidateID == app.CandidateID {
			return repository.ErrDuplicate
		}
	}
	cp := *app
	r.s.applications[app.ID] = &cp
	r.s.order = append(r.s.order, app.ID)
	return nil
}

func (r memApplications) list(match func(*model.Application) bool) []*model.Application {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Application
	for i := len(r.s.order) - 1; i >= 0; i-- {
		a := r.s.applications[r.s.order[i]]
		if match(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

func (r memApplications) ListByJob(_ context.Context, jobID string) ([]*model.Application, error) {
	return r.list(func(a *model.Application) bool { return a.JobID == jobID }), nil
}

func (r memApplications) ListByCandidate(_ context.Context, candidateID string) ([]*model.Application, error) {
	return r.list(func(a *model.Application) bool { return a.CandidateID == candidateID }), nil
}

func (r memApplications) UpdateStatus(_ context.Context, id string, status model.ApplicationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.applications[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	return nil
}

func (s *memStore) applicationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.applications)
}
