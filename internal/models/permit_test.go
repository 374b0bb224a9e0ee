package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatPermitNo(t *testing.T) {
	require.Equal(t, "PRM-2025-000042", FormatPermitNo(2025, 42))
	require.Equal(t, "PRM-2024-123456", FormatPermitNo(2024, 123456))
	require.Equal(t, "PRM-2025-1234567", FormatPermitNo(2025, 1234567))
}

func TestPestControlHappyPath(t *testing.T) {
	steps := []struct {
		action PermitAction
		from   PermitStatus
		to     PermitStatus
	}{
		{ActionSendInspectionPaymentLink, StatusOrderReceived, StatusInspectionPaymentPending},
		{ActionInspectionPayment, StatusInspectionPaymentPending, StatusInspectionPending},
		{ActionReceiveForInspection, StatusInspectionPending, StatusInspectionPending},
		{ActionSubmitInspectionReport, StatusInspectionPending, StatusInspectionCompleted},
		{ActionSendPaymentLink, StatusInspectionCompleted, StatusPaymentPending},
		{ActionPayment, StatusPaymentPending, StatusPaymentCompleted},
		{ActionIssue, StatusPaymentCompleted, StatusIssued},
	}
	for _, step := range steps {
		to, ok := Transition(PermitTypePestControl, step.action, step.from)
		require.True(t, ok, "action %s from %s", step.action, step.from)
		require.Equal(t, step.to, to)
	}
}

func TestTransportReviewLoop(t *testing.T) {
	to, ok := Transition(PermitTypePesticideTransport, ActionInspectionPayment, StatusInspectionPaymentPending)
	require.True(t, ok)
	require.Equal(t, StatusReviewPending, to)

	to, ok = Transition(PermitTypePesticideTransport, ActionNeedsCompletion, StatusReviewPending)
	require.True(t, ok)
	require.Equal(t, StatusNeedsCompletion, to)

	to, ok = Transition(PermitTypePesticideTransport, ActionCompleteMissing, StatusNeedsCompletion)
	require.True(t, ok)
	require.Equal(t, StatusReviewPending, to)

	to, ok = Transition(PermitTypePesticideTransport, ActionApprove, StatusReviewPending)
	require.True(t, ok)
	require.Equal(t, StatusApproved, to)

	to, ok = Transition(PermitTypePesticideTransport, ActionSendPaymentLink, StatusApproved)
	require.True(t, ok)
	require.Equal(t, StatusPaymentPending, to)
}

func TestWasteDisposalApproveIsTerminal(t *testing.T) {
	to, ok := Transition(PermitTypeWasteDisposal, ActionApprove, StatusReviewPending)
	require.True(t, ok)
	require.Equal(t, StatusDisposalApproved, to)
	require.True(t, to.IsFinal())
}

func TestIllegalTransitionsRejected(t *testing.T) {
	cases := []struct {
		permitType PermitType
		action     PermitAction
		from       PermitStatus
	}{
		{PermitTypePestControl, ActionIssue, StatusPaymentPending},
		{PermitTypePestControl, ActionPayment, StatusOrderReceived},
		{PermitTypePestControl, ActionSendPaymentLink, StatusApproved},
		{PermitTypePestControl, ActionSubmitInspectionReport, StatusInspectionCompleted},
		{PermitTypePestControl, ActionReceiveForInspection, StatusOrderReceived},
		{PermitTypePesticideTransport, ActionSubmitInspectionReport, StatusInspectionPending},
		{PermitTypePesticideTransport, ActionSendPaymentLink, StatusInspectionCompleted},
		{PermitTypeWasteDisposal, ActionIssue, StatusPaymentCompleted},
		{PermitTypePestControl, ActionUpdatePermitDetails, StatusOrderReceived},
		{PermitTypePestControl, ActionUpdateRequestEmail, StatusIssued},
	}
	for _, tc := range cases {
		_, ok := Transition(tc.permitType, tc.action, tc.from)
		require.False(t, ok, "%s %s from %s should be illegal", tc.permitType, tc.action, tc.from)
	}
}

func TestIdempotentInspectionPaymentLink(t *testing.T) {
	to, ok := Transition(PermitTypePestControl, ActionSendInspectionPaymentLink, StatusInspectionPaymentPending)
	require.True(t, ok)
	require.Equal(t, StatusInspectionPaymentPending, to)
}

func TestUpdatePermitDetailsStates(t *testing.T) {
	for _, status := range []PermitStatus{StatusPaymentCompleted, StatusIssued} {
		to, ok := Transition(PermitTypePestControl, ActionUpdatePermitDetails, status)
		require.True(t, ok)
		require.Equal(t, status, to)
	}
}

func TestFinalStatuses(t *testing.T) {
	require.True(t, StatusIssued.IsFinal())
	require.True(t, StatusDisposalApproved.IsFinal())
	require.True(t, StatusDisposalRejected.IsFinal())
	require.False(t, StatusPaymentCompleted.IsFinal())
	require.False(t, StatusOrderReceived.IsFinal())
}
