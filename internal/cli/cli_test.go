package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/clinical-core/internal/acidbase"
	"github.com/medassist/clinical-core/internal/classifier"
	"github.com/medassist/clinical-core/internal/config"
	"github.com/medassist/clinical-core/internal/partogram"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.ConfigFileEnv, "")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	out, err := run(t, "", "classify", "calcular", "CURB-65", "na", "pneumonia")
	require.NoError(t, err)

	var res classifier.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "curb65", res.Slug)
	assert.Equal(t, "weighted_sum", res.Policy)

	out, err = run(t, "", "classify", "--policy", "score", "bom dia")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, classifier.CategoryUnknown, res.Category)
	assert.Equal(t, "context_match", res.Policy)
}

func TestClassifyCommand_Errors(t *testing.T) {
	_, err := run(t, "", "classify", "--policy", "magic", "x")
	assert.ErrorContains(t, err, "invalid policy")

	_, err = run(t, "", "classify")
	assert.Error(t, err)
}

func TestBloodGasCommand(t *testing.T) {
	out, err := run(t, "", "bloodgas", "--arterial", "--ph", "7.2", "--paco2", "30", "--hco3", "15", "--na", "140", "--cl", "100")
	require.NoError(t, err)

	var in acidbase.Interpretation
	require.NoError(t, json.Unmarshal([]byte(out), &in))
	require.NotNil(t, in.PrimaryDisorder)
	assert.Equal(t, acidbase.DisorderMetabolicAcidosis, *in.PrimaryDisorder)
	assert.Equal(t, 25.0, *in.AnionGap)

	out, err = run(t, "", "bloodgas", "--arterial", "--ph", "7.2", "--paco2", "30", "--hco3", "15", "--na", "140", "--cl", "100", "--k", "4", "--include-potassium")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &in))
	assert.Equal(t, 29.0, *in.AnionGap)
}

func TestBloodGasCommand_StdinAndFormats(t *testing.T) {
	out, err := run(t, `{"pHVenous":7.30,"pvCO2":50,"hco3":24}`, "bloodgas", "--input", "-")
	require.NoError(t, err)
	var in acidbase.Interpretation
	require.NoError(t, json.Unmarshal([]byte(out), &in))
	assert.True(t, in.EstimatedFromVenous)
	assert.Equal(t, 7.33, *in.PH)

	out, err = run(t, "", "bloodgas", "--arterial", "--ph", "7.4", "--paco2", "40", "--hco3", "24", "--format", "text")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
	assert.NotContains(t, out, "{")

	out, err = run(t, "", "bloodgas", "--arterial", "--ph", "7.4", "--format", "fhir", "--patient", "p-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"resourceType":"Bundle"`)
	assert.Contains(t, out, `"Patient/p-1"`)

	_, err = run(t, "", "bloodgas", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestBloodGasCommand_RejectsPercentFiO2(t *testing.T) {
	_, err := run(t, "", "bloodgas", "--arterial", "--pao2", "90", "--fio2", "40")
	require.Error(t, err)
	assert.ErrorIs(t, err, acidbase.ErrInvalidInputRange)
}

func TestPartogramCommand(t *testing.T) {
	out, err := run(t, "", "partogram", "--point", "5:4", "--point", "1:4")
	require.NoError(t, err)

	var series partogram.ChartSeries
	require.NoError(t, json.Unmarshal([]byte(out), &series))
	assert.True(t, series.CrossesActionLine)
	assert.True(t, series.CrossesAlertLine)
	assert.Equal(t, []partogram.Point{{Hour: 1, Dilation: 4}, {Hour: 5, Dilation: 4}}, series.Observed)
}

func TestPartogramCommand_InputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labor.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"startTime": "2026-03-01T08:00:00Z",
		"observations": [{"timestamp": "2026-03-01T10:00:00Z", "dilationCm": 6}],
		"config": {"alertDilationStartCm": 4, "alertRateCmPerHour": 1, "actionOffsetHours": 4}
	}`), 0o600))

	out, err := run(t, "", "partogram", "--input", path, "--point", "3:7")
	require.NoError(t, err)
	var series partogram.ChartSeries
	require.NoError(t, json.Unmarshal([]byte(out), &series))
	assert.Equal(t, []partogram.Point{{Hour: 2, Dilation: 6}, {Hour: 3, Dilation: 7}}, series.Observed)
	assert.Equal(t, 4.0, series.ActionLine[0].Hour)

	out, err = run(t, "", "partogram", "--input", path, "--format", "fhir")
	require.NoError(t, err)
	assert.Contains(t, out, `"DiagnosticReport"`)
}

func TestPartogramCommand_Errors(t *testing.T) {
	_, err := run(t, "", "partogram", "--point", "abc")
	assert.ErrorContains(t, err, "expected HOURS:CM")

	_, err = run(t, "", "partogram", "--point", "2:11")
	assert.ErrorIs(t, err, partogram.ErrInvalidInputRange)

	_, err = run(t, "", "partogram", "--start", "yesterday")
	assert.ErrorContains(t, err, "invalid start time")
}

func TestParsePoint(t *testing.T) {
	obs, err := parsePoint(" 2.5 : 6 ")
	require.NoError(t, err)
	assert.Equal(t, 2.5, obs.HoursFromStart)
	assert.Equal(t, 6.0, obs.DilationCm)

	_, err = parsePoint("2:x")
	assert.Error(t, err)
}
