package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbridge/zinv/internal/auth"
	"github.com/stockbridge/zinv/internal/inventory"
	"github.com/stockbridge/zinv/internal/output"
	"github.com/stockbridge/zinv/internal/sheetsync"
)

func TestParseQuantity(t *testing.T) {
	n, err := parseQuantity("-3", "Delta")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), n)

	_, err = parseQuantity("4.5", "Quantity")
	require.Error(t, err)
	assert.True(t, output.HasCode(err, output.CodeUsage))
	assert.Contains(t, err.Error(), `Quantity must be a whole number, got "4.5"`)
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 item", plural(1, "item", "items"))
	assert.Equal(t, "0 items", plural(0, "item", "items"))
	assert.Equal(t, "3 entries", plural(3, "entry", "entries"))
}

func TestItemSelectorString(t *testing.T) {
	assert.Equal(t, "W-1", (&itemSelector{sku: "W-1"}).String())
	assert.Equal(t, "Oak Desk", (&itemSelector{name: "Oak Desk"}).String())
	assert.Equal(t, "42", (&itemSelector{id: "42"}).String())
}

func TestAdjustmentSummary(t *testing.T) {
	noop := &inventory.AdjustmentResult{CurrentQuantity: 7, TargetQuantity: 7, NoOp: true}
	assert.Equal(t, "W-1 unchanged at 7", adjustmentSummary("W-1", noop))

	down := &inventory.AdjustmentResult{CurrentQuantity: 10, TargetQuantity: 4, Delta: -6}
	assert.Equal(t, "W-1 adjusted by -6 (10 to 4)", adjustmentSummary("W-1", down))
}

func TestSyncSummary(t *testing.T) {
	assert.Equal(t, "Dry run: 2 targets from 5 rows",
		syncSummary(&sheetsync.Report{DryRun: true, Targets: 2, Rows: 5}))
	assert.Equal(t, "3 adjusted, 1 unchanged, 0 failed",
		syncSummary(&sheetsync.Report{Adjusted: 3, NoOp: 1}))
	assert.Equal(t, "0 adjusted, 0 unchanged, 1 failed, 1 row skipped",
		syncSummary(&sheetsync.Report{Failed: 1, Skipped: []sheetsync.Skipped{{Row: 2}}}))
}

func TestMask(t *testing.T) {
	assert.Empty(t, mask(""))
	assert.Equal(t, "****", mask("short"))
	assert.Equal(t, "1000****", mask("1000.abcdef123456"))
}

func TestParseBoolFlag(t *testing.T) {
	for _, v := range []string{"true", "1", "YES", " on "} {
		b, ok := parseBoolFlag(v)
		assert.True(t, ok, v)
		assert.True(t, b, v)
	}
	b, ok := parseBoolFlag("off")
	assert.True(t, ok)
	assert.False(t, b)
	_, ok = parseBoolFlag("maybe")
	assert.False(t, ok)
}

func TestDoctorSummary(t *testing.T) {
	all := summarizeChecks([]Check{{Status: checkPass}, {Status: checkPass}, {Status: checkSkip}})
	assert.Equal(t, "All 2 checks passed, 1 skipped", all.Summary())

	mixed := summarizeChecks([]Check{{Status: checkPass}, {Status: checkFail}, {Status: checkWarn}, {Status: checkWarn}})
	assert.Equal(t, 1, mixed.Failed)
	assert.Equal(t, "1 passed, 1 failed, 2 warnings", mixed.Summary())
}

type scriptedAsker struct {
	answers map[string]string
	hidden  []string
	visible []string
	err     error
}

func (a *scriptedAsker) Secret(title, _ string) (string, error) {
	a.hidden = append(a.hidden, title)
	return a.answers[title], a.err
}

func (a *scriptedAsker) Input(title, _ string) (string, error) {
	a.visible = append(a.visible, title)
	return a.answers[title], a.err
}

func TestAskMissingCredentials(t *testing.T) {
	values := map[string]string{
		auth.SecretRefreshToken: "",
		auth.SecretClientID:     "1000.XYZ",
		auth.SecretClientSecret: "",
	}
	ask := &scriptedAsker{answers: map[string]string{
		"Refresh token": "1000.refresh",
		"Client secret": "s3cr3t",
	}}

	require.NoError(t, askMissingCredentials(values, ask))
	assert.Equal(t, []string{"Refresh token", "Client secret"}, ask.hidden)
	assert.Empty(t, ask.visible)
	assert.Equal(t, "1000.refresh", values[auth.SecretRefreshToken])
	assert.Equal(t, "1000.XYZ", values[auth.SecretClientID])
	assert.Equal(t, "s3cr3t", values[auth.SecretClientSecret])
}

func TestAskMissingCredentialsClientIDIsVisible(t *testing.T) {
	values := map[string]string{
		auth.SecretRefreshToken: "1000.refresh",
		auth.SecretClientSecret: "s3cr3t",
	}
	ask := &scriptedAsker{answers: map[string]string{"Client ID": "1000.XYZ"}}

	require.NoError(t, askMissingCredentials(values, ask))
	assert.Equal(t, []string{"Client ID"}, ask.visible)
	assert.Empty(t, ask.hidden)
	assert.Equal(t, "1000.XYZ", values[auth.SecretClientID])
}

func TestAskMissingCredentialsStopsOnCancel(t *testing.T) {
	values := map[string]string{}
	ask := &scriptedAsker{err: output.ErrUsage("Cancelled")}

	err := askMissingCredentials(values, ask)
	require.Error(t, err)
	assert.True(t, output.HasCode(err, output.CodeUsage))
	assert.Len(t, ask.hidden, 1)
}
