package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aquasecurity/cms-auditor/types"
)

func TestNewAddon(t *testing.T) {
	a := types.NewAddon("akismet", types.Plugins)
	assert.Equal(t, types.StatusTodo, a.Status)
	assert.Equal(t, types.NotFound, a.LastVersion)
	assert.Equal(t, types.StateUnknown, a.Altered)
	assert.Empty(t, a.Alterations)
	assert.Equal(t, "NO", a.CVE())
}

func TestAddon_SetAlterations(t *testing.T) {
	tests := []struct {
		name        string
		alterations []types.Alteration
		want        types.AlterationState
	}{
		{
			name: "altered",
			alterations: []types.Alteration{
				{Status: types.StatusTodo, File: "readme.txt", Type: types.Altered},
			},
			want: types.StateAltered,
		},
		{
			name: "unaltered",
			want: types.StateUnaltered,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := types.NewAddon("akismet", types.Plugins)
			a.SetAlterations(tt.alterations)
			assert.Equal(t, tt.want, a.Altered)
			assert.NotNil(t, a.Alterations)
			assert.Len(t, a.Alterations, len(tt.alterations))
		})
	}
}

func TestCore_AddNote(t *testing.T) {
	c := types.NewCore(nil)
	c.AddNote("first.")
	c.AddNote("second.")
	assert.Equal(t, "first. second.", c.Notes)
}
