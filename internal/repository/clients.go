package repository

import (
	"context"

	"github.com/existflow/ironledger/internal/model"
)

// AddClient assigns an id and creation time, then stores the client
func (r *Repository) AddClient(ctx context.Context, c model.Client) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.ID = r.newID()
	c.CreatedAt = r.now()
	if err := c.Validate(); err != nil {
		return model.Client{}, err
	}

	err := r.write(
		func() { r.data.Clients = prepend(r.data.Clients, c) },
		func() error {
			_, err := r.backend.Create(ctx, c)
			return err
		},
	)
	if err != nil && !r.kept() {
		return model.Client{}, err
	}
	return c, err
}

// UpdateClient merges patch onto the client with the given id.
// It returns model.ErrNotFound for an unknown id.
func (r *Repository) UpdateClient(ctx context.Context, id string, patch model.ClientPatch) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.Clients, id)
	if i < 0 {
		return model.Client{}, model.ErrNotFound
	}
	c := patch.Apply(r.data.Clients[i])
	if err := c.Validate(); err != nil {
		return model.Client{}, err
	}

	err := r.write(
		func() { r.data.Clients = replaceAt(r.data.Clients, c) },
		func() error {
			_, err := r.backend.Update(ctx, c)
			return err
		},
	)
	if err != nil && !r.kept() {
		return model.Client{}, err
	}
	return c, err
}

// DeleteClient removes the client, its projects and their payments.
// Deleting an unknown id is a no-op.
func (r *Repository) DeleteClient(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if indexOf(r.data.Clients, id) < 0 {
		return nil
	}

	var refs []ref
	for _, p := range r.data.ProjectsByClient(id) {
		for _, pay := range r.data.PaymentsByProject(p.ID) {
			refs = append(refs, ref{model.EntityPayment, pay.ID})
		}
	}
	for _, p := range r.data.ProjectsByClient(id) {
		refs = append(refs, ref{model.EntityProject, p.ID})
	}
	refs = append(refs, ref{model.EntityClient, id})

	return r.deleteAll(ctx, refs)
}

// GetClient looks up a client by id
func (r *Repository) GetClient(id string) (model.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.data.Client(id); c != nil {
		return *c, true
	}
	return model.Client{}, false
}

// Clients returns every client, most recently added first
func (r *Repository) Clients() []model.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Client(nil), r.data.Clients...)
}
