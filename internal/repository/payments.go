package repository

import (
	"context"

	"github.com/existflow/ironledger/internal/model"
)

// AddPayment stores a payment for an existing project
func (r *Repository) AddPayment(ctx context.Context, p model.Payment) (model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	p.ID = r.newID()
	p.CreatedAt = now
	if p.Status == "" {
		p.Status = model.PaymentPending
	}
	if err := p.Validate(); err != nil {
		return model.Payment{}, err
	}
	if r.data.Project(p.ProjectID) == nil {
		return model.Payment{}, &model.ValidationError{
			Entity: model.EntityPayment, Field: "projectId", Reason: "does not reference an existing project",
		}
	}
	p = p.StampReceipt("", now)

	err := r.write(
		func() { r.data.Payments = prepend(r.data.Payments, p) },
		func() error {
			_, err := r.backend.Create(ctx, p)
			return err
		},
	)
	if err != nil && !r.kept() {
		return model.Payment{}, err
	}
	return p, err
}

// UpdatePayment merges patch onto the payment with the given id and applies
// the receipt stamp rule
func (r *Repository) UpdatePayment(ctx context.Context, id string, patch model.PaymentPatch) (model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.data.Payments, id)
	if i < 0 {
		return model.Payment{}, model.ErrNotFound
	}
	prev := r.data.Payments[i]
	p := patch.Apply(prev)
	if err := p.Validate(); err != nil {
		return model.Payment{}, err
	}
	p = p.StampReceipt(prev.Status, r.now())

	err := r.write(
		func() { r.data.Payments = replaceAt(r.data.Payments, p) },
		func() error {
			_, err := r.backend.Update(ctx, p)
			return err
		},
	)
	if err != nil && !r.kept() {
		return model.Payment{}, err
	}
	return p, err
}

// MarkReceived sets the payment status to received
func (r *Repository) MarkReceived(ctx context.Context, id string) (model.Payment, error) {
	status := model.PaymentReceived
	return r.UpdatePayment(ctx, id, model.PaymentPatch{Status: &status})
}

// DeletePayment removes one payment. Deleting an unknown id is a no-op.
func (r *Repository) DeletePayment(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if indexOf(r.data.Payments, id) < 0 {
		return nil
	}
	return r.deleteAll(ctx, []ref{{model.EntityPayment, id}})
}

// GetPayment looks up a payment by id
func (r *Repository) GetPayment(id string) (model.Payment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p := r.data.Payment(id); p != nil {
		return *p, true
	}
	return model.Payment{}, false
}

// Payments returns every payment, most recently added first
func (r *Repository) Payments() []model.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Payment(nil), r.data.Payments...)
}

// PaymentsByProject returns the payments attached to projectID
func (r *Repository) PaymentsByProject(projectID string) []model.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.PaymentsByProject(projectID)
}

// PaymentsWithProjectAndClient joins each payment with its project and client
func (r *Repository) PaymentsWithProjectAndClient() []model.PaymentWithRefs {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.PaymentsWithProjectAndClient()
}
