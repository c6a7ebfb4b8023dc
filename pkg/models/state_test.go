package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveState(t *testing.T) {
	tests := []struct {
		name       string
		requested  bool
		inSync     bool
		live       bool
		hasMeeting bool
		hasOwner   bool
		want       SyncState
	}{
		{name: "no owner is an orphan", hasMeeting: true, want: StateOrphan},
		{name: "converged target is synced", requested: true, inSync: true, live: true, hasMeeting: true, hasOwner: true, want: StateSynced},
		{name: "converged without meeting is synced", inSync: true, live: true, hasOwner: true, want: StateSynced},
		{name: "requested live target wants work", requested: true, live: true, hasOwner: true, want: StateWanted},
		{name: "requested live target with meeting wants update", requested: true, live: true, hasMeeting: true, hasOwner: true, want: StateWanted},
		{name: "withdrawn desire with meeting pends deletion", live: true, hasMeeting: true, hasOwner: true, want: StatePendingDeletion},
		{name: "dead owner with meeting pends deletion", requested: true, hasMeeting: true, hasOwner: true, want: StatePendingDeletion},
		{name: "withdrawn desire without meeting resolves as deletion", live: true, hasOwner: true, want: StatePendingDeletion},
		{name: "dead owner without meeting resolves as deletion", requested: true, hasOwner: true, want: StatePendingDeletion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveState(tt.requested, tt.inSync, tt.live, tt.hasMeeting, tt.hasOwner)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSyncStateString(t *testing.T) {
	require.Equal(t, "wanted", StateWanted.String())
	require.Equal(t, "orphan", StateOrphan.String())
	require.Equal(t, "unknown", SyncState(42).String())
}

func TestSplitHosts(t *testing.T) {
	require.Nil(t, SplitHosts(""))
	require.Equal(t, []string{"a@x.io", " b@x.io"}, SplitHosts("a@x.io, b@x.io"))
	require.Equal(t, []string{"a@x.io"}, SplitHosts("a@x.io,,  "))
}
