package service

import "affiliate-attribution/internal/model"

type statusPair struct {
	current model.CommissionStatus
	desired model.CommissionStatus
}

// transitionTable is the full merge policy for (stored, desired) commission
// status. Encoded as a literal table so the policy is auditable and testable
// in isolation. Rules:
//   - PAID is absorbing; no event downgrades it, including cancellation
//     (cancelling a paid-out commission is a manual financial operation).
//   - APPROVED is never downgraded by a stale PENDING observation.
//   - CANCELLED wins from any non-PAID state and is terminal.
//   - ON_HOLD absorbs PENDING and APPROVED observations; release is a manual
//     review decision, not an event.
var transitionTable = map[statusPair]model.CommissionStatus{
	{model.CommissionPending, model.CommissionPending}:   model.CommissionPending,
	{model.CommissionPending, model.CommissionApproved}:  model.CommissionApproved,
	{model.CommissionPending, model.CommissionOnHold}:    model.CommissionOnHold,
	{model.CommissionPending, model.CommissionCancelled}: model.CommissionCancelled,
	{model.CommissionPending, model.CommissionPaid}:      model.CommissionPaid,

	{model.CommissionApproved, model.CommissionPending}:   model.CommissionApproved,
	{model.CommissionApproved, model.CommissionApproved}:  model.CommissionApproved,
	{model.CommissionApproved, model.CommissionOnHold}:    model.CommissionOnHold,
	{model.CommissionApproved, model.CommissionCancelled}: model.CommissionCancelled,
	{model.CommissionApproved, model.CommissionPaid}:      model.CommissionPaid,

	{model.CommissionOnHold, model.CommissionPending}:   model.CommissionOnHold,
	{model.CommissionOnHold, model.CommissionApproved}:  model.CommissionOnHold,
	{model.CommissionOnHold, model.CommissionOnHold}:    model.CommissionOnHold,
	{model.CommissionOnHold, model.CommissionCancelled}: model.CommissionCancelled,
	{model.CommissionOnHold, model.CommissionPaid}:      model.CommissionPaid,

	{model.CommissionCancelled, model.CommissionPending}:   model.CommissionCancelled,
	{model.CommissionCancelled, model.CommissionApproved}:  model.CommissionCancelled,
	{model.CommissionCancelled, model.CommissionOnHold}:    model.CommissionCancelled,
	{model.CommissionCancelled, model.CommissionCancelled}: model.CommissionCancelled,
	{model.CommissionCancelled, model.CommissionPaid}:      model.CommissionCancelled,

	{model.CommissionPaid, model.CommissionPending}:   model.CommissionPaid,
	{model.CommissionPaid, model.CommissionApproved}:  model.CommissionPaid,
	{model.CommissionPaid, model.CommissionOnHold}:    model.CommissionPaid,
	{model.CommissionPaid, model.CommissionCancelled}: model.CommissionPaid,
	{model.CommissionPaid, model.CommissionPaid}:      model.CommissionPaid,
}

// MergeStatus resolves the next commission status. Unknown pairs keep the
// stored status, which is the safe direction for malformed input.
func MergeStatus(current, desired model.CommissionStatus) model.CommissionStatus {
	if next, ok := transitionTable[statusPair{current, desired}]; ok {
		return next
	}
	return current
}

// countsAsConverted reports whether a status contributes to the click's
// conversion aggregates. The aggregator increments on entering this set and
// decrements on leaving it, so the aggregates always equal the sum over
// currently-converted commissions.
func countsAsConverted(status model.CommissionStatus) bool {
	return status == model.CommissionApproved || status == model.CommissionPaid
}
