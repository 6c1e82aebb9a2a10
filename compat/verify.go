package compat

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/values"
)

// VerifyAll runs the full conformance sweep against an empty, online
// accessor: update application and shadow consistency, unknown-mode
// rejection, filtering precision per category, ordering for every declared
// capability, and the consistency-check timing rules. The accessor is
// dropped and closed at the end; the harness is terminal afterwards.
func (h *Harness) VerifyAll(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"update application", h.verifyUpdateApplication},
		{"unknown update mode", h.verifyUnknownMode},
		{"query filtering", h.verifyFiltering},
		{"ordering", h.verifyOrdering},
		{"teardown timing", h.verifyTeardown},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

func (h *Harness) verifyUpdateApplication(ctx context.Context) error {
	// Within one batch, later updates to the same entity supersede earlier
	// ones; an add-change-remove sequence leaves nothing.
	err := h.UpdateAndCommit([]index.EntryUpdate{
		index.Add(1, values.Int(10)),
		index.Change(1, values.Int(20)),
		index.Remove(1),
	})
	if err != nil {
		return err
	}
	if _, ok := h.Committed(1); ok {
		return errors.New("entity 1 still committed after add-change-remove")
	}
	ids, err := h.Query(index.Exists(0))
	if err != nil {
		return err
	}
	if len(ids) != 0 {
		return fmt.Errorf("entity survived removal: %v", ids)
	}

	// Idempotent re-add leaves exactly one committed value.
	for range 2 {
		if err := h.UpdateAndCommit([]index.EntryUpdate{index.Add(2, values.Int(5))}); err != nil {
			return err
		}
	}
	vals, ok := h.Committed(2)
	if !ok || len(vals) != 1 {
		return errors.New("idempotent re-add did not leave exactly one committed value")
	}
	ids, err = h.Query(index.Exists(0))
	if err != nil {
		return err
	}
	if len(ids) != 1 || ids[0] != 2 {
		return fmt.Errorf("expected only entity 2, got %v", ids)
	}

	return h.UpdateAndCommit([]index.EntryUpdate{index.Remove(2)})
}

func (h *Harness) verifyUnknownMode(ctx context.Context) error {
	if err := h.UpdateAndCommit([]index.EntryUpdate{index.Add(3, values.Int(7))}); err != nil {
		return err
	}

	bad := index.EntryUpdate{EntityID: 4, Mode: index.UpdateMode(250), Values: []values.Value{values.Int(1)}}
	err := h.UpdateAndCommit([]index.EntryUpdate{bad})
	if !errors.Is(err, index.ErrUnknownUpdateMode) {
		return fmt.Errorf("unknown mode not rejected distinctly, got %v", err)
	}
	if _, ok := h.Committed(4); ok {
		return errors.New("shadow map changed by rejected update")
	}
	ids, err := h.Query(index.Exists(0))
	if err != nil {
		return err
	}
	if len(ids) != 1 || ids[0] != 3 {
		return fmt.Errorf("backend state changed by rejected update: %v", ids)
	}

	return h.UpdateAndCommit([]index.EntryUpdate{index.Remove(3)})
}

func (h *Harness) verifyFiltering(ctx context.Context) error {
	err := h.UpdateAndCommit([]index.EntryUpdate{
		index.Add(10, values.Int(100)),
		index.Add(11, values.Int(101)),
		index.Add(12, values.String("alpha")),
		index.Add(13, values.String("alphabet")),
		index.Add(14, values.Point(0.25, 0.25)),
		index.Add(15, values.Point(0.75, 0.75)),
		index.Add(16, values.Bool(true)),
	})
	if err != nil {
		return err
	}

	probes := [][]index.Query{
		{index.Exact(0, values.Int(100))},
		{index.Range(0, values.Int(100), values.Int(101), true, false)},
		{index.Exact(0, values.String("alpha"))},
		{index.StringPrefix(0, "alpha")},
		{index.StringSuffix(0, "bet")},
		{index.Exact(0, values.Point(0.25, 0.25))},
		{index.Exact(0, values.Bool(true))},
	}
	for _, queries := range probes {
		if err := h.VerifyQuery(queries...); err != nil {
			return err
		}
	}

	return h.UpdateAndCommit([]index.EntryUpdate{
		index.Remove(10), index.Remove(11), index.Remove(12), index.Remove(13),
		index.Remove(14), index.Remove(15), index.Remove(16),
	})
}

func (h *Harness) verifyOrdering(ctx context.Context) error {
	err := h.UpdateAndCommit([]index.EntryUpdate{
		index.Add(20, values.Int(3)),
		index.Add(21, values.Int(1)),
		index.Add(22, values.Int(2)),
		index.Add(23, values.Int(2)), // tie, any relative order allowed
	})
	if err != nil {
		return err
	}

	queries := []index.Query{index.Range(0, values.Int(0), values.Int(10), true, true)}
	for _, order := range []index.Order{index.OrderAscending, index.OrderDescending} {
		if err := h.VerifyOrder(order, queries...); err != nil {
			return err
		}
	}

	return h.UpdateAndCommit([]index.EntryUpdate{
		index.Remove(20), index.Remove(21), index.Remove(22), index.Remove(23),
	})
}

// verifyTeardown checks the consistency-check timing state machine: the
// scan succeeds while online and is a usage error after drop, then the
// accessor closes. The check runs before teardown, never after.
func (h *Harness) verifyTeardown(ctx context.Context) error {
	if err := h.accessor.ConsistencyCheck(ctx); err != nil {
		return fmt.Errorf("consistency check while online: %w", err)
	}

	if err := h.accessor.Drop(); err != nil {
		return err
	}
	if err := h.accessor.ConsistencyCheck(ctx); !errors.Is(err, index.ErrNotOnline) {
		return fmt.Errorf("consistency check after drop must be a usage error, got %v", err)
	}

	return h.accessor.Close()
}
