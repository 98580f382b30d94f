package targeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ormasoftchile/webrun/pkg/driver"
	"github.com/ormasoftchile/webrun/pkg/schema"
)

// State is a position in the run-time resolution state machine. States are
// ordered; resolution only ever moves forward, never back to an earlier
// strategy.
type State int

const (
	StateTrySemantic State = iota
	StateTryFingerprint
	StateEscalated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateTrySemantic:
		return "try_semantic"
	case StateTryFingerprint:
		return "try_fingerprint"
	case StateEscalated:
		return "escalated"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DefaultSettleDelay is the pause before the single semantic retry, giving
// late-rendering pages a chance to settle.
const DefaultSettleDelay = 500 * time.Millisecond

// Resolution is the terminal outcome of resolving one step's target.
// Ref is non-nil exactly when State is StateTrySemantic or
// StateTryFingerprint (the strategy that found the element). StateEscalated
// means the caller must hand the step to the reasoning collaborator.
type Resolution struct {
	Ref      driver.ElementRef
	State    State
	Attempts int     // locate calls issued
	Path     []State // states visited, in order
	Reason   string  // set when escalated
}

// Resolved reports whether a concrete element was found.
func (r *Resolution) Resolved() bool { return r.Ref != nil }

// ResolutionError reports a target that could not be resolved even after
// escalation. It is produced by the executor, not the resolver; the
// resolver's own terminal failure is the Escalated resolution.
type ResolutionError struct {
	Target string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve target %q: %s", e.Target, e.Reason)
}

// Resolver re-resolves a step's compile-time targeting decision against a
// live page. Semantic lookups get one retry after a settle delay;
// fingerprint lookups get none, a stale fingerprint will not heal by
// waiting.
type Resolver struct {
	Driver      driver.Driver
	SettleDelay time.Duration // zero means DefaultSettleDelay
}

// Resolve walks the state machine for one step. Driver failures other than
// the not-found/ambiguous sentinels abort resolution with an error; the
// sentinels advance the machine instead.
func (r *Resolver) Resolve(ctx context.Context, step *schema.Step) (*Resolution, error) {
	res := &Resolution{}

	if step.HasSemanticTarget() {
		res.State = StateTrySemantic
		res.Path = append(res.Path, StateTrySemantic)

		ref, err := r.Driver.LocateBySemanticText(ctx, step.TargetText, step.ContainerHint)
		res.Attempts++
		switch {
		case err == nil:
			res.Ref = ref
			return res, nil
		case errors.Is(err, driver.ErrAmbiguous) && step.ContainerHint == "":
			// Without a hint a second lookup would be ambiguous again.
			return r.escalate(res, "ambiguous match and no container hint to narrow it"), nil
		case errors.Is(err, driver.ErrNotFound), errors.Is(err, driver.ErrAmbiguous):
			if serr := r.settle(ctx); serr != nil {
				return nil, serr
			}
			ref, err = r.Driver.LocateBySemanticText(ctx, step.TargetText, step.ContainerHint)
			res.Attempts++
			if err == nil {
				res.Ref = ref
				return res, nil
			}
			if errors.Is(err, driver.ErrNotFound) || errors.Is(err, driver.ErrAmbiguous) {
				return r.escalate(res, fmt.Sprintf("semantic lookup for %q failed twice: %v", step.TargetText, err)), nil
			}
			return nil, fmt.Errorf("locate %q: %w", step.TargetText, err)
		default:
			return nil, fmt.Errorf("locate %q: %w", step.TargetText, err)
		}
	}

	if step.HasFingerprint() {
		res.State = StateTryFingerprint
		res.Path = append(res.Path, StateTryFingerprint)

		ref, err := r.Driver.LocateByFingerprint(ctx, step.ElementHash)
		res.Attempts++
		switch {
		case err == nil:
			res.Ref = ref
			return res, nil
		case errors.Is(err, driver.ErrNotFound):
			return r.escalate(res, "fingerprint is stale on the current page"), nil
		default:
			return nil, fmt.Errorf("locate fingerprint: %w", err)
		}
	}

	return r.escalate(res, "step carries no resolvable target"), nil
}

func (r *Resolver) escalate(res *Resolution, reason string) *Resolution {
	res.Ref = nil
	res.State = StateEscalated
	res.Path = append(res.Path, StateEscalated)
	res.Reason = reason
	return res
}

func (r *Resolver) settle(ctx context.Context) error {
	d := r.SettleDelay
	if d <= 0 {
		d = DefaultSettleDelay
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
