package acidbase

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metabolicAcidosisSample() Sample {
	return Sample{
		IsArterial: true,
		PH:         Float(7.20),
		PaCO2:      Float(30),
		HCO3:       Float(15),
		Na:         Float(140),
		Cl:         Float(100),
	}
}

func TestInterpret_MetabolicAcidosis(t *testing.T) {
	in, err := Interpret(metabolicAcidosisSample())
	require.NoError(t, err)

	require.NotNil(t, in.AnionGap)
	assert.Equal(t, 25.0, *in.AnionGap)
	require.NotNil(t, in.PrimaryDisorder)
	assert.Equal(t, DisorderMetabolicAcidosis, *in.PrimaryDisorder)
	assert.Equal(t, 30.5, in.Compensation[KeyExpectedPaCO2])
	assert.Equal(t, 28.5, in.Compensation[KeyExpectedPaCO2Low])
	assert.Equal(t, 32.5, in.Compensation[KeyExpectedPaCO2High])
	assert.Equal(t, CompensationAdequate, in.CompensationAssessment)

	// no albumin, so no corrected gap and no delta ratio
	assert.Nil(t, in.CorrectedAnionGap)
	assert.Nil(t, in.DeltaRatio)
	assert.Empty(t, in.DeltaRatioAssessment)

	assert.Empty(t, in.Oxygenation)
	assert.Equal(t, []string{"albumin", "paO2", "fiO2"}, in.Missing)
	assert.False(t, in.EstimatedFromVenous)
	assert.Equal(t, SampleArterial, in.SampleType)
}

func TestInterpret_DeltaRatioWithAlbumin(t *testing.T) {
	s := metabolicAcidosisSample()
	s.Albumin = Float(4)

	in, err := Interpret(s)
	require.NoError(t, err)

	require.NotNil(t, in.CorrectedAnionGap)
	assert.Equal(t, 25.0, *in.CorrectedAnionGap)
	require.NotNil(t, in.DeltaRatio)
	assert.Equal(t, 1.44, *in.DeltaRatio)
	assert.Equal(t, DeltaHighGapAcidosis, in.DeltaRatioAssessment)
}

func TestInterpret_RespiratoryAlkalosis(t *testing.T) {
	in, err := Interpret(Sample{IsArterial: true, PH: Float(7.50), PaCO2: Float(30), HCO3: Float(24)})
	require.NoError(t, err)

	require.NotNil(t, in.PrimaryDisorder)
	assert.Equal(t, DisorderRespiratoryAlkalosis, *in.PrimaryDisorder)
	assert.Equal(t, 22.0, in.Compensation[KeyExpectedHCO3Acute])
	assert.Equal(t, 19.5, in.Compensation[KeyExpectedHCO3Chronic])
	assert.Equal(t, CompensationAcute, in.CompensationAssessment)
	assert.Nil(t, in.AnionGap)
}

func TestInterpret_Oxygenation(t *testing.T) {
	s := Sample{
		IsArterial: true,
		PH:         Float(7.40),
		PaCO2:      Float(40),
		HCO3:       Float(24),
		PaO2:       Float(90),
		FiO2:       Float(0.21),
		Age:        Float(40),
	}
	in, err := Interpret(s)
	require.NoError(t, err)

	assert.Equal(t, 99.7, in.Oxygenation[KeyAlveolarPO2])
	assert.Equal(t, 9.7, in.Oxygenation[KeyAaGradient])
	assert.Equal(t, 429.0, in.Oxygenation[KeyPFRatio])
	assert.Equal(t, 14.0, in.Oxygenation[KeyExpectedAaGradient])
	require.NotNil(t, in.PrimaryDisorder)
	assert.Equal(t, DisorderNone, *in.PrimaryDisorder)
}

func TestInterpret_VenousEstimation(t *testing.T) {
	s := Sample{PHVenous: Float(7.30), PvCO2: Float(50), HCO3: Float(24)}

	in, err := Interpret(s)
	require.NoError(t, err)

	assert.True(t, in.EstimatedFromVenous)
	assert.Equal(t, SampleVenous, in.SampleType)
	require.NotNil(t, in.PH)
	assert.Equal(t, 7.33, *in.PH)
	require.NotNil(t, in.PaCO2)
	assert.Equal(t, 45.0, *in.PaCO2)
	require.NotNil(t, in.PrimaryDisorder)
	assert.Equal(t, DisorderIndeterminateAcidemia, *in.PrimaryDisorder)
	assert.Empty(t, in.Oxygenation)

	// the input sample is not touched
	assert.Nil(t, s.PH)
	assert.Nil(t, s.PaCO2)
}

func TestInterpret_DirectValuesWinOverVenous(t *testing.T) {
	in, err := Interpret(Sample{PH: Float(7.38), PHVenous: Float(7.30), PvCO2: Float(50)})
	require.NoError(t, err)

	assert.Equal(t, 7.38, *in.PH)
	assert.Equal(t, 45.0, *in.PaCO2)
	assert.True(t, in.EstimatedFromVenous)
}

func TestInterpret_ArterialIgnoresVenousFields(t *testing.T) {
	in, err := Interpret(Sample{IsArterial: true, PHVenous: Float(7.30), PvCO2: Float(50)})
	require.NoError(t, err)

	assert.False(t, in.EstimatedFromVenous)
	assert.Nil(t, in.PH)
	assert.Nil(t, in.PaCO2)
}

func TestInterpret_EmptySample(t *testing.T) {
	in, err := Interpret(Sample{})
	require.NoError(t, err)

	assert.Nil(t, in.PrimaryDisorder)
	assert.Nil(t, in.AnionGap)
	assert.NotNil(t, in.Compensation)
	assert.NotNil(t, in.Oxygenation)
	assert.Equal(t, []string{"pH", "paCO2", "hco3", "na", "cl"}, in.Missing)
	assert.True(t, strings.HasSuffix(in.Narrative, Disclaimer))
}

func TestInterpret_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		s     Sample
		field string
	}{
		{"fiO2 as percentage", Sample{IsArterial: true, PaO2: Float(90), FiO2: Float(21)}, "fiO2"},
		{"zero fiO2", Sample{FiO2: Float(0)}, "fiO2"},
		{"pH too high", Sample{PH: Float(8.2)}, "pH"},
		{"pH too low", Sample{PH: Float(6.0)}, "pH"},
		{"venous pH out of range", Sample{PHVenous: Float(9)}, "pHVenous"},
		{"NaN", Sample{Na: Float(math.NaN())}, "na"},
		{"infinity", Sample{Cl: Float(math.Inf(1))}, "cl"},
		{"negative", Sample{Age: Float(-3)}, "age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Interpret(tt.s)
			require.Error(t, err)
			assert.Nil(t, in)
			assert.True(t, errors.Is(err, ErrInvalidInputRange))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestEngine_IncludePotassium(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludePotassium = true
	e, err := NewEngine(opts)
	require.NoError(t, err)

	s := metabolicAcidosisSample()
	s.K = Float(4)
	in, err := e.Interpret(s)
	require.NoError(t, err)
	assert.Equal(t, 29.0, *in.AnionGap)
}

func TestEngine_CustomVenousOffsets(t *testing.T) {
	e, err := NewEngine(Options{VenousPHOffset: 0.05, VenousPCO2Offset: 8})
	require.NoError(t, err)

	in, err := e.Interpret(Sample{PHVenous: Float(7.30), PvCO2: Float(50)})
	require.NoError(t, err)
	assert.Equal(t, 7.35, *in.PH)
	assert.Equal(t, 42.0, *in.PaCO2)
}

func TestInterpret_VenousPCO2BelowOffsetIsNotEstimated(t *testing.T) {
	in, err := Interpret(Sample{PHVenous: Float(7.30), PvCO2: Float(3), HCO3: Float(24)})
	require.NoError(t, err)

	assert.Nil(t, in.PaCO2)
	assert.Empty(t, in.Compensation)
	require.NotNil(t, in.PH)
	assert.Equal(t, 7.33, *in.PH)
	assert.Equal(t, []string{"paCO2", "pvCO2", "na", "cl"}, in.Missing)
	assert.Contains(t, in.Narrative, "Estimativa arterial descartada: pvCO2 fora da faixa após o ajuste venoso.")
}

func TestEngine_VenousPHEstimateOutOfRangeIsDropped(t *testing.T) {
	e, err := NewEngine(Options{VenousPHOffset: -10, VenousPCO2Offset: 5})
	require.NoError(t, err)

	in, err := e.Interpret(Sample{PHVenous: Float(7.30)})
	require.NoError(t, err)

	assert.Nil(t, in.PH)
	assert.False(t, in.EstimatedFromVenous)
	assert.Nil(t, in.PrimaryDisorder)
	assert.Contains(t, in.Missing, "pHVenous")
	assert.NotContains(t, in.Narrative, "Valores arteriais estimados")
}

func TestNewEngine_RejectsNonFiniteOffsets(t *testing.T) {
	_, err := NewEngine(Options{VenousPHOffset: math.NaN()})
	assert.Error(t, err)

	_, err = NewEngine(Options{VenousPCO2Offset: math.Inf(-1)})
	assert.Error(t, err)
}

func TestInterpretation_JSONRoundTrip(t *testing.T) {
	s := metabolicAcidosisSample()
	s.Albumin = Float(2.5)
	s.PaO2 = Float(72)
	s.FiO2 = Float(0.4)
	s.Age = Float(67)

	in, err := Interpret(s)
	require.NoError(t, err)

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var back Interpretation
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, *in, back)
}

func TestInterpret_ConcurrentCallsAgree(t *testing.T) {
	want, err := Interpret(metabolicAcidosisSample())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Interpretation, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Interpret(metabolicAcidosisSample())
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
