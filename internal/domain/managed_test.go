package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeManaged_PreservesStatus(t *testing.T) {
	prev := []ManagedIncident{
		{RawIncident: RawIncident{ID: "a", Street: "Old St"}, Status: StatusAcknowledged, Assignee: "ops-1"},
		{RawIncident: RawIncident{ID: "b"}, Status: StatusResolved},
	}
	fresh := []RawIncident{
		{ID: "c", Street: "New Rd"},
		{ID: "a", Street: "Main St"},
	}

	got := MergeManaged(prev, fresh)

	want := []ManagedIncident{
		{RawIncident: RawIncident{ID: "c", Street: "New Rd"}, Status: StatusNew},
		{RawIncident: RawIncident{ID: "a", Street: "Main St"}, Status: StatusAcknowledged, Assignee: "ops-1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeManaged_EmptyFresh(t *testing.T) {
	prev := []ManagedIncident{{RawIncident: RawIncident{ID: "a"}, Status: StatusNew}}
	assert.Empty(t, MergeManaged(prev, nil))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("ACKNOWLEDGED")
	require.NoError(t, err)
	assert.Equal(t, StatusAcknowledged, s)

	_, err = ParseStatus("acknowledged")
	require.Error(t, err)
}
