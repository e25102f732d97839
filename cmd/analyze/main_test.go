package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tradesCSV = "TradeHash,Short_Long,Asset,Entry_Datetimes,Market_Entries,Close_Datetimes,Market_Closes,Account_ID,User_ID,Avg_Market_Entry,Avg_Market_Close,Total_Contracts,Net_Profit,Seconds_Held\n" +
	"h1,LONG,NQM5,[100],[18000],[200],[18010],a1,u1,18000,18010,2,20,100\n" +
	"h2,SHORT,MNQM5,[150],[18005],[250],[18000],a2,u2,18005,18000,2,-5,100\n"

func TestParseFormats(t *testing.T) {
	got, err := parseFormats([]string{"CSV", " json", "csv", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"csv", "json"}, got)

	_, err = parseFormats([]string{"pdf"})
	assert.Error(t, err)

	_, err = parseFormats(nil)
	assert.Error(t, err)
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "trades.csv")
	require.NoError(t, os.WriteFile(input, []byte(tradesCSV), 0o644))
	out := filepath.Join(dir, "out")

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		input,
		"--output-dir", out,
		"--format", "csv,json,xlsx,md",
		"--price-threshold", "10",
		"--confidence-threshold", "0.5",
		"--include-close-price=false",
		"--verify", "2",
	})
	require.NoError(t, cmd.Execute())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var md string
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), "hedge_pairs_"), e.Name())
		if strings.HasSuffix(e.Name(), ".md") {
			data, err := os.ReadFile(filepath.Join(out, e.Name()))
			require.NoError(t, err)
			md = string(data)
		}
	}
	assert.Contains(t, md, "| Total Pairs | 1 |")
}

func TestAnalyzeCommand_InvalidParams(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"missing.csv", "--confidence-threshold", "3", "--output-dir", t.TempDir()})
	assert.Error(t, cmd.Execute())
}

func TestAnalyzeCommand_NoInput(t *testing.T) {
	t.Setenv("HEDGE_POSTGRES_DSN", "")
	t.Setenv("HEDGE_CLICKHOUSE_DSN", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--output-dir", t.TempDir()})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input")
}

func TestAnalyzeCommand_RuleSet(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "trades.csv")
	csv := tradesCSV +
		"h3,LONG,ESM5,[100],[5000],[200],[5000],a3,u3,5000,5000,1,2,100\n" +
		"h4,SHORT,MESM5,[120],[5002],[220],[5002],a4,u4,5002,5002,1,-2,100\n"
	require.NoError(t, os.WriteFile(input, []byte(csv), 0o644))

	totalPairs := func(ruleSet string) string {
		out := filepath.Join(dir, "out-"+ruleSet)
		cmd := newRootCmd()
		cmd.SetArgs([]string{input, "--output-dir", out, "--format", "md", "--rule-set", ruleSet,
			"--price-threshold", "10", "--confidence-threshold", "0.5", "--include-close-price=false"})
		require.NoError(t, cmd.Execute())

		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		data, err := os.ReadFile(filepath.Join(out, entries[0].Name()))
		require.NoError(t, err)
		return string(data)
	}

	assert.Contains(t, totalPairs("default"), "| Total Pairs | 1 |")
	assert.Contains(t, totalPairs("extended"), "| Total Pairs | 2 |")

	cmd := newRootCmd()
	cmd.SetArgs([]string{input, "--output-dir", filepath.Join(dir, "bad"), "--rule-set", "exotic"})
	assert.Error(t, cmd.Execute())
}
