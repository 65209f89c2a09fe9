package models

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soundrise/wallet/internal/apperrors"
)

func TestTransitionPath(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		wantPath []string
		wantErr  error
	}{
		{
			name:     "single step forward",
			from:     WithdrawalStatusPending,
			to:       WithdrawalStatusApproved,
			wantPath: []string{WithdrawalStatusApproved},
		},
		{
			name:     "approved to processing",
			from:     WithdrawalStatusApproved,
			to:       WithdrawalStatusProcessing,
			wantPath: []string{WithdrawalStatusProcessing},
		},
		{
			name:     "processing to paid",
			from:     WithdrawalStatusProcessing,
			to:       WithdrawalStatusPaid,
			wantPath: []string{WithdrawalStatusPaid},
		},
		{
			name: "skip states records every intermediate",
			from: WithdrawalStatusPending,
			to:   WithdrawalStatusPaid,
			wantPath: []string{
				WithdrawalStatusApproved,
				WithdrawalStatusProcessing,
				WithdrawalStatusPaid,
			},
		},
		{
			name:     "same state is a no-op",
			from:     WithdrawalStatusProcessing,
			to:       WithdrawalStatusProcessing,
			wantPath: nil,
		},
		{
			name:     "terminal same state is a no-op",
			from:     WithdrawalStatusPaid,
			to:       WithdrawalStatusPaid,
			wantPath: nil,
		},
		{
			name:    "backward is forbidden",
			from:    WithdrawalStatusPaid,
			to:      WithdrawalStatusProcessing,
			wantErr: apperrors.ErrInvalidStateTransition,
		},
		{
			name:    "paid to pending is forbidden",
			from:    WithdrawalStatusPaid,
			to:      WithdrawalStatusPending,
			wantErr: apperrors.ErrInvalidStateTransition,
		},
		{
			name:     "failed from processing",
			from:     WithdrawalStatusProcessing,
			to:       WithdrawalStatusFailed,
			wantPath: []string{WithdrawalStatusFailed},
		},
		{
			name:     "failed from pending",
			from:     WithdrawalStatusPending,
			to:       WithdrawalStatusFailed,
			wantPath: []string{WithdrawalStatusFailed},
		},
		{
			name:    "failed from rejected is forbidden",
			from:    WithdrawalStatusRejected,
			to:      WithdrawalStatusFailed,
			wantErr: apperrors.ErrInvalidStateTransition,
		},
		{
			name:     "rejected from pending",
			from:     WithdrawalStatusPending,
			to:       WithdrawalStatusRejected,
			wantPath: []string{WithdrawalStatusRejected},
		},
		{
			name:     "rejected terminalizes failed",
			from:     WithdrawalStatusFailed,
			to:       WithdrawalStatusRejected,
			wantPath: []string{WithdrawalStatusRejected},
		},
		{
			name:    "rejected from processing is forbidden",
			from:    WithdrawalStatusProcessing,
			to:      WithdrawalStatusRejected,
			wantErr: apperrors.ErrInvalidStateTransition,
		},
		{
			name:    "resurrecting failed is forbidden",
			from:    WithdrawalStatusFailed,
			to:      WithdrawalStatusProcessing,
			wantErr: apperrors.ErrInvalidStateTransition,
		},
		{
			name:    "unknown status is forbidden",
			from:    "garbage",
			to:      WithdrawalStatusPaid,
			wantErr: apperrors.ErrInvalidStateTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := TransitionPath(tt.from, tt.to)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantPath, path)
		})
	}
}

func TestIsTerminalStatus(t *testing.T) {
	require.True(t, IsTerminalStatus(WithdrawalStatusPaid))
	require.True(t, IsTerminalStatus(WithdrawalStatusFailed))
	require.True(t, IsTerminalStatus(WithdrawalStatusRejected))

	require.False(t, IsTerminalStatus(WithdrawalStatusPending))
	require.False(t, IsTerminalStatus(WithdrawalStatusApproved))
	require.False(t, IsTerminalStatus(WithdrawalStatusProcessing))
}
