package result

import (
	"testing"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishedState(t *testing.T) engine.State {
	t.Helper()
	tmpl := engine.Template{
		{Team: engine.TeamBlue, Action: engine.ActionBan},
		{Team: engine.TeamRed, Action: engine.ActionBan},
		{Team: engine.TeamBlue, Action: engine.ActionPick},
		{Team: engine.TeamRed, Action: engine.ActionPick, Role: engine.RoleMid},
		{Team: engine.TeamBlue, Action: engine.ActionPick},
	}
	s := engine.NewState(tmpl, engine.Rules{})
	for _, cmd := range []engine.Command{
		{Type: engine.CmdSubmit, Team: engine.TeamBlue, Action: engine.ActionBan, Champion: "zed"},
		{Type: engine.CmdSubmit, Team: engine.TeamRed, Action: engine.ActionBan, Champion: "yasuo"},
		{Type: engine.CmdSubmit, Team: engine.TeamBlue, Action: engine.ActionPick, Champion: "ahri"},
		{Type: engine.CmdSubmit, Team: engine.TeamRed, Action: engine.ActionPick, Champion: "syndra"},
		{Type: engine.CmdSubmit, Team: engine.TeamBlue, Action: engine.ActionPick, Champion: "leesin", Role: engine.RoleTop},
	} {
		var err error
		_, s, err = engine.Apply(s, cmd)
		require.NoError(t, err)
	}
	return s
}

var roster = []session.Participant{
	{ID: "u1", DisplayName: "Faker"},
	{ID: "u2", DisplayName: "Chovy"},
}

func TestBuild_RejectsUnfinishedDraft(t *testing.T) {
	s := engine.NewState(engine.DefaultTemplate(), engine.Rules{})
	_, err := Build("S1", s, nil, roster)
	assert.ErrorIs(t, err, drafterr.ErrInvalidPhase)
}

func TestBuild_ProjectsRolesAndLineup(t *testing.T) {
	seats := map[engine.Team]map[engine.Role]string{
		engine.TeamBlue: {engine.RoleMid: "u1"},
		engine.TeamRed:  {engine.RoleMid: "u2"},
	}

	f, err := Build("S1", finishedState(t), seats, roster)
	require.NoError(t, err)

	assert.Equal(t, "S1", f.SessionID)
	assert.Equal(t, map[engine.Role]string{engine.RoleTop: "leesin", engine.RoleJungle: "ahri"}, f.Picks[engine.TeamBlue])
	assert.Equal(t, map[engine.Role]string{engine.RoleMid: "syndra"}, f.Picks[engine.TeamRed])
	assert.Equal(t, []string{"zed"}, f.Bans[engine.TeamBlue])
	assert.Equal(t, "Faker", f.Lineup[engine.TeamBlue][engine.RoleMid].DisplayName)
	assert.Equal(t, roster, f.Participants)
	assert.False(t, f.Adjusted)
}

func TestApply_PatchOverridesWithoutValidation(t *testing.T) {
	f, err := Build("S1", finishedState(t), nil, roster)
	require.NoError(t, err)

	patched := f.Apply(Patch{
		Picks: map[engine.Team]map[engine.Role]string{
			engine.TeamBlue: {engine.RoleJungle: "", engine.RoleSupport: "syndra"},
		},
		Bans:   map[engine.Team][]string{engine.TeamRed: {"yasuo", "yone"}},
		Lineup: map[engine.Team]map[engine.Role]string{engine.TeamRed: {engine.RoleTop: "stranger"}},
	})

	assert.True(t, patched.Adjusted)
	assert.Equal(t, map[engine.Role]string{engine.RoleTop: "leesin", engine.RoleSupport: "syndra"}, patched.Picks[engine.TeamBlue])
	assert.Equal(t, []string{"yasuo", "yone"}, patched.Bans[engine.TeamRed])
	assert.Equal(t, session.Participant{ID: "stranger"}, patched.Lineup[engine.TeamRed][engine.RoleTop])

	// original untouched
	assert.Equal(t, "ahri", f.Picks[engine.TeamBlue][engine.RoleJungle])
	assert.Equal(t, []string{"yasuo"}, f.Bans[engine.TeamRed])
}

func TestBuild_OverflowGoesToBench(t *testing.T) {
	var tmpl engine.Template
	for range 6 {
		tmpl = append(tmpl, engine.TurnStep{Team: engine.TeamBlue, Action: engine.ActionPick})
	}
	s := engine.NewState(tmpl, engine.Rules{})
	for _, c := range []string{"a", "b", "c", "d", "e", "f"} {
		var err error
		_, s, err = engine.Apply(s, engine.Command{Type: engine.CmdSubmit, Team: engine.TeamBlue, Action: engine.ActionPick, Champion: c})
		require.NoError(t, err)
	}

	f, err := Build("S1", s, nil, nil)
	require.NoError(t, err)
	assert.Len(t, f.Picks[engine.TeamBlue], 5)
	assert.Equal(t, []string{"f"}, f.Bench[engine.TeamBlue])
	assert.Equal(t, "e", f.Picks[engine.TeamBlue][engine.RoleSupport])
}
