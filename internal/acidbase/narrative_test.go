package acidbase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNarrative_FixedOrder(t *testing.T) {
	s := metabolicAcidosisSample()
	s.Albumin = Float(4)
	s.PaO2 = Float(90)
	s.FiO2 = Float(0.21)

	in, err := Interpret(s)
	require.NoError(t, err)

	parts := []string{
		"Amostra arterial.",
		"pH 7.2, PaCO2 30 mmHg, HCO3 15 mEq/L.",
		"Ânion gap 25 mEq/L (corrigido pela albumina: 25 mEq/L).",
		"Distúrbio primário: acidose metabólica.",
		"PaCO2 esperada 30.5 mmHg (28.5 a 32.5).",
		"Avaliação da compensação: compensação adequada.",
		"Delta ratio 1.44",
		"Relação P/F 429.",
		Disclaimer,
	}
	last := -1
	for _, p := range parts {
		idx := strings.Index(in.Narrative, p)
		require.GreaterOrEqual(t, idx, 0, "missing %q in %q", p, in.Narrative)
		assert.Greater(t, idx, last, "%q out of order", p)
		last = idx
	}
	assert.True(t, strings.HasSuffix(in.Narrative, Disclaimer))
}

func TestBuildNarrative_StatesMissingInputs(t *testing.T) {
	in, err := Interpret(Sample{IsArterial: true, PH: Float(7.40), PaCO2: Float(40), Na: Float(140), Cl: Float(104), PaO2: Float(90)})
	require.NoError(t, err)

	assert.Contains(t, in.Narrative, "Ânion gap não calculado: hco3 ausente.")
	assert.Contains(t, in.Narrative, "Distúrbio primário não calculado: hco3 ausente.")
	assert.Contains(t, in.Narrative, "Índices de oxigenação não calculados: fiO2 ausente.")
	assert.NotContains(t, in.Narrative, "HCO3")
}

func TestBuildNarrative_DeltaRatioNeedsAlbumin(t *testing.T) {
	in, err := Interpret(metabolicAcidosisSample())
	require.NoError(t, err)

	require.NotNil(t, in.AnionGap)
	assert.Equal(t, 25.0, *in.AnionGap)
	assert.Nil(t, in.DeltaRatio)
	assert.Contains(t, in.Narrative, "Delta ratio não calculado: albumina ausente.")

	s := metabolicAcidosisSample()
	s.Albumin = Float(4)
	in, err = Interpret(s)
	require.NoError(t, err)
	assert.NotContains(t, in.Narrative, "não calculado: albumina")

	in, err = Interpret(Sample{IsArterial: true, Na: Float(140), Cl: Float(104), HCO3: Float(24)})
	require.NoError(t, err)
	assert.NotContains(t, in.Narrative, "Delta ratio")
}

func TestBuildNarrative_VenousEstimate(t *testing.T) {
	in, err := Interpret(Sample{PHVenous: Float(7.30), PvCO2: Float(50), HCO3: Float(24)})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(in.Narrative, "Amostra venosa. Valores arteriais estimados"))
	assert.NotContains(t, in.Narrative, "oxigenação")
}

func TestBuildNarrative_Deterministic(t *testing.T) {
	s := metabolicAcidosisSample()
	a, err := Interpret(s)
	require.NoError(t, err)
	b, err := Interpret(s)
	require.NoError(t, err)

	assert.Equal(t, a.Narrative, b.Narrative)
	assert.Equal(t, a.Narrative, BuildNarrative(a))
}
