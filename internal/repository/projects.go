package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/model"
)

// AddProject stores a new project. A project with a positive amount also
// gets one pending payment due a week after its deadline.
func (r *Repository) AddProject(ctx context.Context, p model.Project) (model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	p.ID = r.newID()
	p.CreatedAt = now
	if p.Status == "" {
		p.Status = model.ProjectPending
	}
	if err := p.Validate(); err != nil {
		return model.Project{}, err
	}
	if r.data.Client(p.ClientID) == nil {
		return model.Project{}, &model.ValidationError{
			Entity: model.EntityProject, Field: "clientId", Reason: "does not reference an existing client",
		}
	}
	p = p.StampDelivery("", now)

	var pay *model.Payment
	if p.Amount > 0 {
		pay = &model.Payment{
			ID:        r.newID(),
			ProjectID: p.ID,
			Amount:    p.Amount,
			Status:    model.PaymentPending,
			DueDate:   model.DueDateFor(p.Deadline, now),
			CreatedAt: now,
		}
	}

	if r.kept() {
		r.data.Projects = prepend(r.data.Projects, p)
		if pay != nil {
			r.data.Payments = prepend(r.data.Payments, *pay)
		}
		var errs []error
		if _, err := r.backend.Create(ctx, p); err != nil {
			errs = append(errs, err)
		}
		if pay != nil {
			if _, err := r.backend.Create(ctx, *pay); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			logger.Warn("Project kept locally, backend write failed",
				logger.F("backend", r.backend.Name()),
				logger.F("project", p.ID),
				logger.F("error", err))
			return p, err
		}
		return p, nil
	}

	if _, err := r.backend.Create(ctx, p); err != nil {
		return model.Project{}, err
	}
	if pay != nil {
		if _, err := r.backend.Create(ctx, *pay); err != nil {
			if derr := r.backend.Delete(ctx, model.EntityProject, p.ID); derr != nil {
				logger.Error("Failed to undo project after payment write failed",
					logger.F("project", p.ID),
					logger.F("error", derr))
			}
			return model.Project{}, fmt.Errorf("failed to create payment for project %s: %w", p.ID, err)
		}
	}

	r.data.Projects = prepend(r.data.Projects, p)
	if pay != nil {
		r.data.Payments = prepend(r.data.Payments, *pay)
	}
	return p, nil
}

// UpdateProject merges patch onto the project with the given id and applies
// the delivery stamp rule
func (r *Repository) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.Projects, id)
	if i < 0 {
		return model.Project{}, model.ErrNotFound
	}
	prev := r.data.Projects[i]
	p := patch.Apply(prev)
	if err := p.Validate(); err != nil {
		return model.Project{}, err
	}
	if p.ClientID != prev.ClientID && r.data.Client(p.ClientID) == nil {
		return model.Project{}, &model.ValidationError{
			Entity: model.EntityProject, Field: "clientId", Reason: "does not reference an existing client",
		}
	}
	p = p.StampDelivery(prev.Status, r.now())

	err := r.write(
		func() { r.data.Projects = replaceAt(r.data.Projects, p) },
		func() error {
			_, err := r.backend.Update(ctx, p)
			return err
		},
	)
	if err != nil && !r.kept() {
		return model.Project{}, err
	}
	return p, err
}

// MarkDelivered sets the project status to delivered
func (r *Repository) MarkDelivered(ctx context.Context, id string) (model.Project, error) {
	status := model.ProjectDelivered
	return r.UpdateProject(ctx, id, model.ProjectPatch{Status: &status})
}

// DeleteProject removes the project and its payments.
// Deleting an unknown id is a no-op.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if indexOf(r.data.Projects, id) < 0 {
		return nil
	}

	var refs []ref
	for _, pay := range r.data.PaymentsByProject(id) {
		refs = append(refs, ref{model.EntityPayment, pay.ID})
	}
	refs = append(refs, ref{model.EntityProject, id})

	return r.deleteAll(ctx, refs)
}

// GetProject looks up a project by id
func (r *Repository) GetProject(id string) (model.Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p := r.data.Project(id); p != nil {
		return *p, true
	}
	return model.Project{}, false
}

// Projects returns every project, most recently added first
func (r *Repository) Projects() []model.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Project(nil), r.data.Projects...)
}

// ProjectsByClient returns the projects owned by clientID
func (r *Repository) ProjectsByClient(clientID string) []model.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.ProjectsByClient(clientID)
}

// ProjectsWithClient joins each project with its client, nil when missing
func (r *Repository) ProjectsWithClient() []model.ProjectWithClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.ProjectsWithClient()
}
