package acidbase

import (
	"fmt"
	"strconv"
	"strings"
)

// Disclaimer closes every narrative.
const Disclaimer = "Interpretação automatizada de apoio; confirme com a avaliação clínica do paciente."

var disorderLabels = map[Disorder]string{
	DisorderNone:                   "sem distúrbio ácido-base primário (pH normal)",
	DisorderMetabolicAcidosis:      "acidose metabólica",
	DisorderRespiratoryAcidosis:    "acidose respiratória",
	DisorderMetabolicAlkalosis:     "alcalose metabólica",
	DisorderRespiratoryAlkalosis:   "alcalose respiratória",
	DisorderIndeterminateAcidemia:  "acidemia de origem indeterminada",
	DisorderIndeterminateAlkalemia: "alcalemia de origem indeterminada",
}

var compensationLabels = map[CompensationAssessment]string{
	CompensationAdequate:             "compensação adequada",
	CompensationRespiratoryAcidosis:  "acidose respiratória associada",
	CompensationRespiratoryAlkalosis: "alcalose respiratória associada",
	CompensationAcute:                "padrão agudo",
	CompensationChronic:              "padrão crônico",
	CompensationPartial:              "compensação parcial (entre aguda e crônica)",
	CompensationMetabolicAcidosis:    "acidose metabólica associada",
	CompensationMetabolicAlkalosis:   "alcalose metabólica associada",
}

var deltaLabels = map[DeltaRatioAssessment]string{
	DeltaNormalGapAcidosis:   "sugere acidose de ânion gap normal",
	DeltaMixedGapAcidosis:    "sugere acidose mista, de ânion gap elevado e normal",
	DeltaHighGapAcidosis:     "compatível com acidose de ânion gap elevado pura",
	DeltaAssociatedAlkalosis: "sugere alcalose metabólica associada",
}

// Label returns the Portuguese description of d.
func (d Disorder) Label() string {
	if l, ok := disorderLabels[d]; ok {
		return l
	}
	return string(d)
}

// Label returns the Portuguese description of c.
func (c CompensationAssessment) Label() string {
	if l, ok := compensationLabels[c]; ok {
		return l
	}
	return string(c)
}

// Label returns the Portuguese description of d.
func (d DeltaRatioAssessment) Label() string {
	if l, ok := deltaLabels[d]; ok {
		return l
	}
	return string(d)
}

// BuildNarrative renders in as a sequence of Portuguese sentences. The order is
// fixed: sample type, measured values, anion gap, primary disorder,
// compensation, delta ratio, oxygenation, disclaimer. Absent values are left
// out; the anion gap, the primary disorder, the delta ratio and oxygenation
// instead name the input that blocked them.
func BuildNarrative(in *Interpretation) string {
	var sb strings.Builder
	sentence := func(format string, args ...any) {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, format, args...)
	}

	if in.SampleType == SampleArterial {
		sentence("Amostra arterial.")
	} else {
		sentence("Amostra venosa.")
	}
	if in.EstimatedFromVenous {
		sentence("Valores arteriais estimados a partir da amostra venosa (aproximação).")
	}
	if names := listed(in.Missing, "pHVenous", "pvCO2"); len(names) > 0 {
		sentence("Estimativa arterial descartada: %s fora da faixa após o ajuste venoso.", strings.Join(names, ", "))
	}

	var values []string
	if in.PH != nil {
		values = append(values, "pH "+num(*in.PH))
	}
	if in.PaCO2 != nil {
		values = append(values, "PaCO2 "+num(*in.PaCO2)+" mmHg")
	}
	if in.HCO3 != nil {
		values = append(values, "HCO3 "+num(*in.HCO3)+" mEq/L")
	}
	if len(values) > 0 {
		sentence("%s.", strings.Join(values, ", "))
	}

	switch {
	case in.AnionGap == nil:
		sentence("Ânion gap não calculado: %s ausente.", absent(in.Missing, "na", "cl", "hco3"))
	case in.CorrectedAnionGap != nil:
		sentence("Ânion gap %s mEq/L (corrigido pela albumina: %s mEq/L).", num(*in.AnionGap), num(*in.CorrectedAnionGap))
	default:
		sentence("Ânion gap %s mEq/L.", num(*in.AnionGap))
	}

	if in.PrimaryDisorder == nil {
		sentence("Distúrbio primário não calculado: %s ausente.", absent(in.Missing, "pH", "paCO2", "hco3"))
	} else {
		sentence("Distúrbio primário: %s.", in.PrimaryDisorder.Label())
	}

	if mid, ok := in.Compensation[KeyExpectedPaCO2]; ok {
		sentence("PaCO2 esperada %s mmHg (%s a %s).", num(mid),
			num(in.Compensation[KeyExpectedPaCO2Low]), num(in.Compensation[KeyExpectedPaCO2High]))
	}
	if acute, ok := in.Compensation[KeyExpectedHCO3Acute]; ok {
		sentence("HCO3 esperado %s mEq/L se agudo e %s mEq/L se crônico.", num(acute), num(in.Compensation[KeyExpectedHCO3Chronic]))
	}
	if l, ok := compensationLabels[in.CompensationAssessment]; ok {
		sentence("Avaliação da compensação: %s.", l)
	}

	switch {
	case in.DeltaRatio != nil:
		sentence("Delta ratio %s, %s.", num(*in.DeltaRatio), deltaLabels[in.DeltaRatioAssessment])
	case in.AnionGap != nil && *in.AnionGap > NormalAnionGap && in.CorrectedAnionGap == nil:
		sentence("Delta ratio não calculado: albumina ausente.")
	}

	switch {
	case in.SampleType != SampleArterial:
		// venous samples carry no oxygenation indices
	case len(in.Oxygenation) == 0:
		sentence("Índices de oxigenação não calculados: %s ausente.", absent(in.Missing, "paO2", "fiO2"))
	default:
		if v, ok := in.Oxygenation[KeyAlveolarPO2]; ok {
			sentence("PAO2 %s mmHg, gradiente A–a %s mmHg.", num(v), num(in.Oxygenation[KeyAaGradient]))
		}
		if v, ok := in.Oxygenation[KeyPFRatio]; ok {
			sentence("Relação P/F %s.", num(v))
		}
		if v, ok := in.Oxygenation[KeyExpectedAaGradient]; ok {
			sentence("Gradiente A–a esperado para a idade %s mmHg.", num(v))
		}
	}

	sentence(Disclaimer)
	return sb.String()
}

// absent joins the names in missing that belong to want, keeping want's order.
func absent(missing []string, want ...string) string {
	names := listed(missing, want...)
	if len(names) == 0 {
		return "dados"
	}
	return strings.Join(names, ", ")
}

func listed(missing []string, want ...string) []string {
	var names []string
	for _, w := range want {
		for _, m := range missing {
			if m == w {
				names = append(names, w)
				break
			}
		}
	}
	return names
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
