/*
bulk.go - Batch variants of validate/lock/publish

PURPOSE:
  End-of-term administration runs the same transition over many actas
  at once. Each reference is processed independently: one failure never
  aborts or rolls back the others, and there is no all-or-nothing
  transaction. Results are aggregate counts only; callers wanting
  per-item detail call the single-item operations in a loop themselves.
*/
package acta

import "context"

// BulkResult aggregates a bulk validate run.
type BulkResult struct {
	Total     int
	Succeeded int
	Failed    int
}

// BulkLockResult aggregates a bulk lock run.
type BulkLockResult struct {
	Locked int
	Failed int
}

// BulkPublishResult aggregates a bulk publish run.
type BulkPublishResult struct {
	Published int
	Failed    int
}

// BulkValidate recomputes metrics for every referenced Acta.
func (s *Service) BulkValidate(ctx context.Context, actor Actor, refs []Ref) BulkResult {
	r := BulkResult{Total: len(refs)}
	for _, ref := range refs {
		if _, err := s.Validate(ctx, actor, ref); err != nil {
			r.Failed++
			continue
		}
		r.Succeeded++
	}
	return r
}

// BulkLock attempts to lock every referenced Acta. Actas that fail
// validation (or are not in DRAFT) are counted and left untouched.
func (s *Service) BulkLock(ctx context.Context, actor Actor, refs []Ref) BulkLockResult {
	r := BulkLockResult{}
	for _, ref := range refs {
		if _, err := s.Lock(ctx, actor, ref); err != nil {
			r.Failed++
			continue
		}
		r.Locked++
	}
	return r
}

// BulkPublish attempts to publish every referenced Acta.
func (s *Service) BulkPublish(ctx context.Context, actor Actor, refs []Ref) BulkPublishResult {
	r := BulkPublishResult{}
	for _, ref := range refs {
		if _, err := s.Publish(ctx, actor, ref); err != nil {
			r.Failed++
			continue
		}
		r.Published++
	}
	return r
}
