package syncer

import (
	"errors"
	"time"

	"worksync/internal/catalog"
)

// Outcome classifies one record reconciliation.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpdated
	OutcomeFailed
)

var errMissingID = errors.New("record has no stable external id")

// MirrorStore writes one record by external id, returning true when
// the record was inserted rather than overwritten. The work and author
// repositories implement it.
type MirrorStore interface {
	Upsert(externalID string, sourceUpdatedAt time.Time, payload []byte) (bool, error)
}

// Reconciler reconciles one fetched record against local state.
// Errors are always record-scoped; the caller counts them and moves on.
type Reconciler interface {
	Reconcile(rec catalog.Record) (Outcome, error)
}

// NewReconciler builds a mirror-backed reconciler, or a count-only one
// when no mirror store is configured.
func NewReconciler(store MirrorStore) Reconciler {
	if store == nil {
		return countOnlyReconciler{}
	}
	return &mirrorReconciler{store: store}
}

type mirrorReconciler struct {
	store MirrorStore
}

func (r *mirrorReconciler) Reconcile(rec catalog.Record) (Outcome, error) {
	if rec.ID == "" {
		return OutcomeFailed, errMissingID
	}
	created, err := r.store.Upsert(rec.ID, rec.UpdatedAt, rec.Raw)
	if err != nil {
		return OutcomeFailed, err
	}
	if created {
		return OutcomeCreated, nil
	}
	return OutcomeUpdated, nil
}

// countOnlyReconciler traverses records without writing anything, so
// job statistics still reflect true upstream volume. Every record with
// a usable id is classified Updated.
type countOnlyReconciler struct{}

func (countOnlyReconciler) Reconcile(rec catalog.Record) (Outcome, error) {
	if rec.ID == "" {
		return OutcomeFailed, errMissingID
	}
	return OutcomeUpdated, nil
}
