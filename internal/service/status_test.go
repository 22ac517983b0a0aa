package service

import (
	"testing"

	"affiliate-attribution/internal/model"
)

func TestMergeStatusTable(t *testing.T) {
	statuses := []model.CommissionStatus{
		model.CommissionPending,
		model.CommissionApproved,
		model.CommissionOnHold,
		model.CommissionCancelled,
		model.CommissionPaid,
	}

	// The table must be exhaustive over all pairs.
	for _, current := range statuses {
		for _, desired := range statuses {
			if _, ok := transitionTable[statusPair{current, desired}]; !ok {
				t.Errorf("transition table missing (%s, %s)", current, desired)
			}
		}
	}

	cases := []struct {
		current, desired, want model.CommissionStatus
	}{
		// happy path forward
		{model.CommissionPending, model.CommissionApproved, model.CommissionApproved},
		{model.CommissionApproved, model.CommissionPaid, model.CommissionPaid},
		// stale events never downgrade
		{model.CommissionApproved, model.CommissionPending, model.CommissionApproved},
		{model.CommissionPaid, model.CommissionPending, model.CommissionPaid},
		{model.CommissionPaid, model.CommissionApproved, model.CommissionPaid},
		// cancellation is authoritative, except after payout
		{model.CommissionPending, model.CommissionCancelled, model.CommissionCancelled},
		{model.CommissionApproved, model.CommissionCancelled, model.CommissionCancelled},
		{model.CommissionOnHold, model.CommissionCancelled, model.CommissionCancelled},
		{model.CommissionPaid, model.CommissionCancelled, model.CommissionPaid},
		// cancellation is terminal
		{model.CommissionCancelled, model.CommissionApproved, model.CommissionCancelled},
		{model.CommissionCancelled, model.CommissionPending, model.CommissionCancelled},
		// hold absorbs payment observations, releases only to cancellation
		{model.CommissionApproved, model.CommissionOnHold, model.CommissionOnHold},
		{model.CommissionOnHold, model.CommissionApproved, model.CommissionOnHold},
		{model.CommissionOnHold, model.CommissionPending, model.CommissionOnHold},
	}

	for _, tc := range cases {
		if got := MergeStatus(tc.current, tc.desired); got != tc.want {
			t.Errorf("MergeStatus(%s, %s) = %s, want %s", tc.current, tc.desired, got, tc.want)
		}
	}
}

func TestMergeStatusCommutesUnderReordering(t *testing.T) {
	// Two different-status events for one order must converge to the same
	// final state in either delivery order.
	pairs := []struct {
		a, b model.CommissionStatus
	}{
		{model.CommissionApproved, model.CommissionCancelled},
		{model.CommissionPending, model.CommissionApproved},
		{model.CommissionPending, model.CommissionCancelled},
	}
	for _, p := range pairs {
		forward := MergeStatus(MergeStatus(model.CommissionPending, p.a), p.b)
		backward := MergeStatus(MergeStatus(model.CommissionPending, p.b), p.a)
		if forward != backward {
			t.Errorf("order-dependent merge for (%s, %s): %s vs %s", p.a, p.b, forward, backward)
		}
	}
}

func TestMergeStatusUnknownPairKeepsCurrent(t *testing.T) {
	if got := MergeStatus(model.CommissionApproved, "BOGUS"); got != model.CommissionApproved {
		t.Errorf("unknown desired status changed state to %s", got)
	}
}

func TestCountsAsConverted(t *testing.T) {
	if !countsAsConverted(model.CommissionApproved) || !countsAsConverted(model.CommissionPaid) {
		t.Error("approved/paid must count toward aggregates")
	}
	for _, s := range []model.CommissionStatus{model.CommissionPending, model.CommissionOnHold, model.CommissionCancelled} {
		if countsAsConverted(s) {
			t.Errorf("%s must not count toward aggregates", s)
		}
	}
}
