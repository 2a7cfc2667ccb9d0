package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/engine"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 10, cfg.MaxParticipants)
	assert.Equal(t, engine.Rules{BanTimerSec: 30, PickTimerSec: 30}, cfg.Rules())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 168*time.Hour, cfg.ResultTTL)
	assert.True(t, cfg.RequireFilledSeats)
}

func TestLoad_DotEnvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("NABI_PICK_TIMER_SEC=45\nNABI_ADDR=:9000\n"), 0o600))
	t.Setenv("NABI_ADDR", ":7000")
	t.Setenv("NABI_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Cleanup(func() { os.Unsetenv("NABI_PICK_TIMER_SEC") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 45, cfg.PickTimerSec)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_Rejects(t *testing.T) {
	t.Setenv("NABI_BAN_TIMER_SEC", "-1")
	_, err := Load(filepath.Join(t.TempDir(), "none"))
	assert.Error(t, err)

	t.Setenv("NABI_BAN_TIMER_SEC", "soon")
	_, err = Load(filepath.Join(t.TempDir(), "none"))
	assert.ErrorContains(t, err, "parse env")
}

func TestTemplate(t *testing.T) {
	def, err := Config{TurnOrder: "default"}.Template()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultTemplate(), def)

	tour, err := Config{TurnOrder: "tournament"}.Template()
	require.NoError(t, err)
	assert.Equal(t, engine.TournamentTemplate(), tour)

	path := filepath.Join(t.TempDir(), "order.yaml")
	require.NoError(t, os.WriteFile(path, []byte("turns:\n  - {team: blue, action: ban}\n  - {team: red, action: pick, role: MID}\n"), 0o600))
	custom, err := Config{TurnOrder: path}.Template()
	require.NoError(t, err)
	assert.Equal(t, engine.Template{
		{Team: engine.TeamBlue, Action: engine.ActionBan},
		{Team: engine.TeamRed, Action: engine.ActionPick, Role: engine.RoleMid},
	}, custom)

	_, err = Config{TurnOrder: filepath.Join(t.TempDir(), "nope.yaml")}.Template()
	assert.Error(t, err)
}

func TestLoadTemplate_Invalid(t *testing.T) {
	_, err := LoadTemplate(strings.NewReader("turns: []\n"))
	assert.ErrorIs(t, err, drafterr.ErrInvalidInput)

	_, err = LoadTemplate(strings.NewReader("turns:\n  - {team: green, action: ban}\n"))
	assert.ErrorIs(t, err, drafterr.ErrInvalidInput)
}
