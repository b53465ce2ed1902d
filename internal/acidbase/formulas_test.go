package acidbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnionGap(t *testing.T) {
	tests := []struct {
		name  string
		na    *float64
		cl    *float64
		hco3  *float64
		k     *float64
		withK bool
		want  *float64
	}{
		{name: "classic", na: Float(140), cl: Float(100), hco3: Float(15), want: Float(25)},
		{name: "potassium ignored by default", na: Float(140), cl: Float(100), hco3: Float(15), k: Float(4), want: Float(25)},
		{name: "potassium opt-in", na: Float(140), cl: Float(100), hco3: Float(15), k: Float(4), withK: true, want: Float(29)},
		{name: "opt-in without potassium", na: Float(140), cl: Float(100), hco3: Float(15), withK: true, want: Float(25)},
		{name: "rounds to one decimal", na: Float(138.26), cl: Float(101.1), hco3: Float(22.04), want: Float(15.1)},
		{name: "missing sodium", cl: Float(100), hco3: Float(15)},
		{name: "missing chloride", na: Float(140), hco3: Float(15)},
		{name: "missing bicarbonate", na: Float(140), cl: Float(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnionGap(tt.na, tt.cl, tt.hco3, tt.k, tt.withK))
		})
	}
}

func TestCorrectedAnionGap(t *testing.T) {
	assert.Equal(t, Float(17), CorrectedAnionGap(Float(12), Float(2)))
	assert.Equal(t, Float(25), CorrectedAnionGap(Float(25), Float(4)))
	assert.Nil(t, CorrectedAnionGap(Float(12), nil))
	assert.Nil(t, CorrectedAnionGap(nil, Float(2)))
}

func TestClassifyPrimaryDisorder(t *testing.T) {
	tests := []struct {
		pH, paCO2, hco3 float64
		want            Disorder
	}{
		{7.20, 30, 15, DisorderMetabolicAcidosis},
		{7.25, 60, 26, DisorderRespiratoryAcidosis},
		{7.30, 42, 23, DisorderIndeterminateAcidemia},
		{7.50, 48, 35, DisorderMetabolicAlkalosis},
		{7.50, 30, 24, DisorderRespiratoryAlkalosis},
		{7.48, 38, 25, DisorderIndeterminateAlkalemia},
		{7.40, 40, 24, DisorderNone},
		{7.35, 40, 24, DisorderNone},
		{7.45, 40, 24, DisorderNone},
	}

	for _, tt := range tests {
		got := ClassifyPrimaryDisorder(Float(tt.pH), Float(tt.paCO2), Float(tt.hco3))
		require.NotNil(t, got)
		assert.Equal(t, tt.want, *got, "pH=%v paCO2=%v hco3=%v", tt.pH, tt.paCO2, tt.hco3)
	}

	assert.Nil(t, ClassifyPrimaryDisorder(nil, Float(40), Float(24)))
	assert.Nil(t, ClassifyPrimaryDisorder(Float(7.4), nil, Float(24)))
	assert.Nil(t, ClassifyPrimaryDisorder(Float(7.4), Float(40), nil))
}

func TestExpectedCompensation(t *testing.T) {
	t.Run("winter formula", func(t *testing.T) {
		got := ExpectedCompensation(DisorderMetabolicAcidosis, Float(30), Float(15))
		assert.Equal(t, map[string]float64{
			KeyExpectedPaCO2:     30.5,
			KeyExpectedPaCO2Low:  28.5,
			KeyExpectedPaCO2High: 32.5,
		}, got)
	})

	t.Run("metabolic alkalosis", func(t *testing.T) {
		got := ExpectedCompensation(DisorderMetabolicAlkalosis, Float(48), Float(35))
		assert.Equal(t, map[string]float64{
			KeyExpectedPaCO2:     44.5,
			KeyExpectedPaCO2Low:  39.5,
			KeyExpectedPaCO2High: 49.5,
		}, got)
	})

	t.Run("respiratory acidosis gives acute and chronic", func(t *testing.T) {
		got := ExpectedCompensation(DisorderRespiratoryAcidosis, Float(60), Float(26))
		assert.Equal(t, map[string]float64{
			KeyExpectedHCO3Acute:   26,
			KeyExpectedHCO3Chronic: 31,
		}, got)
	})

	t.Run("respiratory alkalosis gives acute and chronic", func(t *testing.T) {
		got := ExpectedCompensation(DisorderRespiratoryAlkalosis, Float(30), Float(24))
		assert.Equal(t, map[string]float64{
			KeyExpectedHCO3Acute:   22,
			KeyExpectedHCO3Chronic: 19.5,
		}, got)
	})

	t.Run("no compensation for normal or indeterminate", func(t *testing.T) {
		assert.Empty(t, ExpectedCompensation(DisorderNone, Float(40), Float(24)))
		assert.Empty(t, ExpectedCompensation(DisorderIndeterminateAcidemia, Float(42), Float(23)))
	})
}

func TestDeltaRatio(t *testing.T) {
	assert.Equal(t, Float(1.33), DeltaRatio(Float(20), Float(18)))
	assert.Equal(t, Float(1.44), DeltaRatio(Float(25), Float(15)))
	assert.Nil(t, DeltaRatio(Float(12), Float(18)), "gap not elevated")
	assert.Nil(t, DeltaRatio(Float(20), Float(24)), "zero denominator")
	assert.Nil(t, DeltaRatio(nil, Float(18)))
	assert.Nil(t, DeltaRatio(Float(20), nil))
}

func TestOxygenation(t *testing.T) {
	t.Run("room air with age", func(t *testing.T) {
		got := Oxygenation(true, Float(90), Float(0.21), Float(40), Float(40))
		assert.Equal(t, map[string]float64{
			KeyAlveolarPO2:        99.7,
			KeyAaGradient:         9.7,
			KeyPFRatio:            429,
			KeyExpectedAaGradient: 14,
		}, got)
	})

	t.Run("without paCO2 only the ratio", func(t *testing.T) {
		got := Oxygenation(true, Float(80), Float(0.5), nil, nil)
		assert.Equal(t, map[string]float64{KeyPFRatio: 160}, got)
	})

	t.Run("venous samples are skipped", func(t *testing.T) {
		assert.Empty(t, Oxygenation(false, Float(90), Float(0.21), Float(40), nil))
	})

	t.Run("missing fiO2", func(t *testing.T) {
		assert.Empty(t, Oxygenation(true, Float(90), nil, Float(40), nil))
	})
}

func TestRoundHasNoNegativeZero(t *testing.T) {
	got := round(-0.01, 1)
	assert.Equal(t, "0", num(got))
}
