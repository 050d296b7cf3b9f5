package revision

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from    Status
		event   Event
		want    Status
		wantErr bool
	}{
		{Pending, Submit, Submitted, false},
		{"", Submit, Submitted, false},
		{Submitted, Submit, RevisionSubmitted, false},
		{Submitted, Accept, Accepted, false},
		{Submitted, Reject, Rejected, false},
		{RevisionSubmitted, Submit, RevisionSubmitted, false},
		{RevisionSubmitted, Accept, Accepted, false},
		{RevisionSubmitted, Reject, Rejected, false},
		{Pending, Accept, Pending, true},
		{Pending, Reject, Pending, true},
		{Accepted, Submit, Accepted, true},
		{Rejected, Submit, Rejected, true},
		{Accepted, Reject, Accepted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Next(tt.from, tt.event)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, common.ErrInvalidTransition))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(Accepted))
	assert.True(t, Terminal(Rejected))
	assert.False(t, Terminal(Pending))
	assert.False(t, Terminal(RevisionSubmitted))
}

func TestParse(t *testing.T) {
	s, err := Parse("revision_submitted")
	require.NoError(t, err)
	assert.Equal(t, RevisionSubmitted, s)

	s, err = Parse("")
	require.NoError(t, err)
	assert.Equal(t, Pending, s)

	_, err = Parse("archived")
	assert.True(t, errors.Is(err, common.ErrBadRequest))
}
