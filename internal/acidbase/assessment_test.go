package acidbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessCompensation(t *testing.T) {
	tests := []struct {
		name     string
		disorder Disorder
		paCO2    float64
		hco3     float64
		want     CompensationAssessment
	}{
		{"metabolic acidosis adequate", DisorderMetabolicAcidosis, 30, 15, CompensationAdequate},
		{"metabolic acidosis with respiratory acidosis", DisorderMetabolicAcidosis, 40, 15, CompensationRespiratoryAcidosis},
		{"metabolic acidosis with respiratory alkalosis", DisorderMetabolicAcidosis, 24, 15, CompensationRespiratoryAlkalosis},
		{"metabolic alkalosis adequate", DisorderMetabolicAlkalosis, 48, 35, CompensationAdequate},
		{"respiratory acidosis chronic", DisorderRespiratoryAcidosis, 60, 31, CompensationChronic},
		{"respiratory acidosis acute", DisorderRespiratoryAcidosis, 60, 26, CompensationAcute},
		{"respiratory acidosis partial", DisorderRespiratoryAcidosis, 60, 28.5, CompensationPartial},
		{"respiratory acidosis with metabolic acidosis", DisorderRespiratoryAcidosis, 60, 20, CompensationMetabolicAcidosis},
		{"respiratory acidosis with metabolic alkalosis", DisorderRespiratoryAcidosis, 60, 36, CompensationMetabolicAlkalosis},
		{"respiratory alkalosis acute", DisorderRespiratoryAlkalosis, 30, 24, CompensationAcute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected := ExpectedCompensation(tt.disorder, Float(tt.paCO2), Float(tt.hco3))
			got := AssessCompensation(tt.disorder, Float(tt.paCO2), Float(tt.hco3), expected)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Empty(t, AssessCompensation(DisorderNone, Float(40), Float(24), map[string]float64{}))
	assert.Empty(t, AssessCompensation(DisorderMetabolicAcidosis, nil, Float(15), map[string]float64{}))
}

func TestAssessDeltaRatio(t *testing.T) {
	tests := []struct {
		ratio float64
		want  DeltaRatioAssessment
	}{
		{0.3, DeltaNormalGapAcidosis},
		{0.5, DeltaMixedGapAcidosis},
		{0.8, DeltaHighGapAcidosis},
		{2.0, DeltaHighGapAcidosis},
		{2.5, DeltaAssociatedAlkalosis},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AssessDeltaRatio(Float(tt.ratio)), "ratio=%v", tt.ratio)
	}
	assert.Empty(t, AssessDeltaRatio(nil))
}
