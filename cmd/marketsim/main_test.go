package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStrategiesCommand(t *testing.T) {
	out, err := execute(t, "strategies")

	require.NoError(t, err)
	assert.Equal(t, "Asset Trading\nWealth Trading\nMean Reversion\nMomentum\n", out)
}

func TestRunCommand_PrintsSummary(t *testing.T) {
	out, err := execute(t, "run", "--agents", "12", "--width", "4", "--height", "4",
		"--strategy", "wealth-trading", "--ticks", "25", "--seed", "5", "--log-level", "error")

	require.NoError(t, err)
	assert.Contains(t, out, "Wealth Trading, 12 agents on a 4x4 grid, seed 5")
	assert.Contains(t, out, "ticks:         25")
	assert.Contains(t, out, "total wealth:  120")
}

func TestRunCommand_ReportsClamping(t *testing.T) {
	out, err := execute(t, "run", "--agents", "30", "--width", "2", "--height", "2",
		"--ticks", "1", "--seed", "5", "--log-level", "error")

	require.NoError(t, err)
	assert.Contains(t, out, "4 agents on a 2x2 grid")
	assert.Contains(t, out, "requested 30 agents")
}

func TestRunCommand_ExportsToDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")

	_, err := execute(t, "run", "--agents", "6", "--width", "3", "--height", "3",
		"--ticks", "10", "--seed", "9", "--db", path, "--log-level", "error")
	require.NoError(t, err)

	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var runs []struct {
		ID    string `db:"id"`
		Ticks uint64 `db:"ticks"`
	}
	require.NoError(t, db.Select(&runs, "SELECT id, ticks FROM runs"))
	require.Len(t, runs, 1)
	assert.Equal(t, uint64(10), runs[0].Ticks)

	var ticks int
	require.NoError(t, db.Get(&ticks, "SELECT COUNT(*) FROM tick_metrics WHERE run_id = ?", runs[0].ID))
	assert.Equal(t, 10, ticks)
}

func TestRunCommand_RejectsUnknownStrategy(t *testing.T) {
	_, err := execute(t, "run", "--strategy", "arbitrage", "--ticks", "1")

	assert.Error(t, err)
}
