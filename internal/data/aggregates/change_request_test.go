package aggregates

import (
	"testing"

	types "github.com/veridian-labs/doccontrol-backend/internal/domain"
)

func TestIsAllowedChangeRequestTransition(t *testing.T) {
	allowed := []struct{ from, to types.ChangeRequestStatus }{
		{types.ChangeRequestStatusDraft, types.ChangeRequestStatusSubmitted},
		{types.ChangeRequestStatusDraft, types.ChangeRequestStatusCancelled},
		{types.ChangeRequestStatusSubmitted, types.ChangeRequestStatusUnderReview},
		{types.ChangeRequestStatusSubmitted, types.ChangeRequestStatusCancelled},
		{types.ChangeRequestStatusUnderReview, types.ChangeRequestStatusApproved},
		{types.ChangeRequestStatusUnderReview, types.ChangeRequestStatusRejected},
		{types.ChangeRequestStatusUnderReview, types.ChangeRequestStatusDraft},
		{types.ChangeRequestStatusApproved, types.ChangeRequestStatusImplemented},
		{types.ChangeRequestStatusRejected, types.ChangeRequestStatusDraft},
		{types.ChangeRequestStatusRejected, types.ChangeRequestStatusCancelled},
	}
	for _, tc := range allowed {
		if !isAllowedChangeRequestTransition(tc.from, tc.to) {
			t.Fatalf("transition %s -> %s: want allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to types.ChangeRequestStatus }{
		{types.ChangeRequestStatusDraft, types.ChangeRequestStatusApproved},
		{types.ChangeRequestStatusSubmitted, types.ChangeRequestStatusApproved},
		{types.ChangeRequestStatusApproved, types.ChangeRequestStatusCancelled},
		{types.ChangeRequestStatusImplemented, types.ChangeRequestStatusDraft},
		{types.ChangeRequestStatusCancelled, types.ChangeRequestStatusDraft},
		{types.ChangeRequestStatusCancelled, types.ChangeRequestStatusSubmitted},
	}
	for _, tc := range denied {
		if isAllowedChangeRequestTransition(tc.from, tc.to) {
			t.Fatalf("transition %s -> %s: want denied", tc.from, tc.to)
		}
	}
}
