package entitlement

import "context"

// BatchFailure records one failed item of a batch operation.
type BatchFailure struct {
	Code      string `json:"code"`
	ErrorKind Kind   `json:"error_kind"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// BatchResult is the partial-result outcome of a batch: every input code
// lands in exactly one of the two lists.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// BatchOp applies one entitlement operation to a single device code.
type BatchOp func(ctx context.Context, code string) error

// ApplyToMany fans a single-item operation out over a list of device
// codes. Failures are isolated per item: one device's error never aborts
// the rest, and never masks another item's result. Items run
// sequentially; each operation carries its own transaction.
func (s *Service) ApplyToMany(ctx context.Context, codes []string, op BatchOp) BatchResult {
	result := BatchResult{
		Succeeded: make([]string, 0, len(codes)),
		Failed:    make([]BatchFailure, 0),
	}

	for _, code := range codes {
		if err := op(ctx, code); err != nil {
			result.Failed = append(result.Failed, BatchFailure{
				Code:      code,
				ErrorKind: KindOf(err),
				ErrorCode: CodeOf(err),
				Message:   err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, code)
	}

	return result
}

// BatchStartTrial starts trials on many devices with per-item isolation.
func (s *Service) BatchStartTrial(ctx context.Context, codes []string, days int, actor Actor) BatchResult {
	return s.ApplyToMany(ctx, codes, func(ctx context.Context, code string) error {
		_, err := s.StartTrial(ctx, code, days, actor)
		return err
	})
}

// BatchActivateWithCredits activates many devices through one reseller.
// Each item debits separately, so a mid-batch insufficient balance fails
// only the remaining items that can no longer be afforded.
func (s *Service) BatchActivateWithCredits(ctx context.Context, resellerID string, codes []string, days int) BatchResult {
	return s.ApplyToMany(ctx, codes, func(ctx context.Context, code string) error {
		_, err := s.ActivateWithCredits(ctx, resellerID, code, days)
		return err
	})
}
