package classifier

// scoreIndicators mark an explicit request to compute a scale or score.
var scoreIndicators = []string{
	"escore", "score", "escala", "calcular", "cálculo", "pontuação", "pontos", "classificação",
}

// DefaultIntentLexicon returns the routing table for general clinician queries.
func DefaultIntentLexicon() *Lexicon {
	lex, err := NewLexicon(intentSpec())
	if err != nil {
		panic("classifier: default intent lexicon: " + err.Error())
	}
	return lex
}

// DefaultScoreLexicon returns the table used to detect clinical-score requests.
func DefaultScoreLexicon() *Lexicon {
	lex, err := NewLexicon(LexiconSpec{
		Entries:           scoreEntries(),
		GenericIndicators: scoreIndicators,
	})
	if err != nil {
		panic("classifier: default score lexicon: " + err.Error())
	}
	return lex
}

func intentSpec() LexiconSpec {
	entries := scoreEntries()
	entries = append(entries, calculatorEntries()...)
	entries = append(entries, protocolEntries()...)
	entries = append(entries, documentationEntries()...)

	return LexiconSpec{
		Entries: entries,
		Indicators: map[Category][]string{
			CategoryScore:         scoreIndicators,
			CategoryCalculator:    {"calcular", "cálculo", "calculadora", "interpretar", "interpretação", "fórmula"},
			CategoryProtocol:      {"protocolo", "conduta", "manejo", "diretriz", "fluxograma", "tratamento"},
			CategoryDocumentation: {"redigir", "escrever", "gerar", "modelo", "documento", "documentar", "emitir"},
		},
		GenericIndicators: scoreIndicators,
	}
}

func scoreEntries() []Entry {
	return []Entry{
		{
			Category: CategoryScore, Slug: "curb65", CanonicalName: "CURB-65",
			Keywords:     []string{"CURB-65", "curb65", "curb 65", "CRB-65", "crb65"},
			ContextTerms: []string{"pneumonia", "pneumonia adquirida", "comunitária", "gravidade"},
			Priority:     2,
		},
		{
			Category: CategoryScore, Slug: "glasgow", CanonicalName: "Escala de Coma de Glasgow",
			Keywords:     []string{"glasgow", "gcs"},
			ContextTerms: []string{"coma", "trauma", "nível de consciência", "tce"},
			Priority:     2,
		},
		{
			Category: CategoryScore, Slug: "apgar", CanonicalName: "Escore de Apgar",
			Keywords:     []string{"apgar"},
			ContextTerms: []string{"recém-nascido", "neonato", "nascimento"},
			Priority:     2,
		},
		{
			Category: CategoryScore, Slug: "bishop", CanonicalName: "Índice de Bishop",
			Keywords:     []string{"bishop"},
			ContextTerms: []string{"indução", "colo uterino", "parto"},
			Priority:     2,
		},
		{
			Category: CategoryScore, Slug: "cha2ds2vasc", CanonicalName: "CHA₂DS₂-VASc",
			Keywords:     []string{"cha2ds2-vasc", "cha2ds2", "chads"},
			ContextTerms: []string{"fibrilação atrial", "anticoagul", "tromboembolismo"},
			Priority:     2,
		},
		{
			Category: CategoryScore, Slug: "wells", CanonicalName: "Escore de Wells",
			Keywords:     []string{"wells"},
			ContextTerms: []string{"tvp", "trombose", "tep", "embolia"},
			Priority:     2,
		},
		{
			Category: CategoryScore, Slug: "qsofa", CanonicalName: "qSOFA",
			Keywords:     []string{"qsofa", "q-sofa"},
			ContextTerms: []string{"sepse", "infecção"},
			Priority:     2,
		},
		{
			Category: CategoryScore, Slug: "meld", CanonicalName: "MELD",
			Keywords:     []string{"meld"},
			ContextTerms: []string{"cirrose", "hepatopatia", "transplante"},
			Priority:     2,
		},
		{
			Category: CategoryScore, Slug: "nihss", CanonicalName: "NIHSS",
			Keywords:     []string{"nihss"},
			ContextTerms: []string{"avc", "acidente vascular"},
			Priority:     2,
		},
	}
}

func calculatorEntries() []Entry {
	return []Entry{
		{
			Category: CategoryCalculator, Slug: "gasometria", CanonicalName: "Gasometria e Distúrbio Ácido-Base",
			Keywords:     []string{"gasometria", "ácido-base", "ácido base", "ânion gap", "anion gap", "hiato aniônico", "bicarbonato", "paco2"},
			ContextTerms: []string{"acidose", "alcalose", "compensação", "winter"},
			Priority:     1,
		},
		{
			Category: CategoryCalculator, Slug: "partograma", CanonicalName: "Partograma",
			Keywords:     []string{"partograma", "dilatação cervical", "trabalho de parto", "linha de alerta", "linha de ação"},
			ContextTerms: []string{"dilatação", "parada de progressão", "contrações", "gestante"},
			Priority:     1,
		},
		{
			Category: CategoryCalculator, Slug: "imc", CanonicalName: "Índice de Massa Corporal",
			Keywords:     []string{"imc", "índice de massa corporal"},
			ContextTerms: []string{"peso", "altura", "obesidade"},
		},
		{
			Category: CategoryCalculator, Slug: "clearance-creatinina", CanonicalName: "Clearance de Creatinina",
			Keywords:     []string{"clearance", "cockcroft", "taxa de filtração", "tfg"},
			ContextTerms: []string{"creatinina", "renal", "ajuste de dose"},
			Priority:     1,
		},
		{
			Category: CategoryCalculator, Slug: "idade-gestacional", CanonicalName: "Idade Gestacional",
			Keywords:     []string{"idade gestacional", "data provável do parto", "dpp"},
			ContextTerms: []string{"gestação", "ultrassom", "semanas"},
			Priority:     1,
		},
	}
}

func protocolEntries() []Entry {
	return []Entry{
		{
			Category: CategoryProtocol, Slug: "sepse", CanonicalName: "Protocolo de Sepse",
			Keywords:     []string{"sepse", "choque séptico"},
			ContextTerms: []string{"antibiótico", "lactato", "bundle"},
			Priority:     1,
		},
		{
			Category: CategoryProtocol, Slug: "dor-toracica", CanonicalName: "Protocolo de Dor Torácica",
			Keywords:     []string{"infarto", "síndrome coronariana", "dor torácica"},
			ContextTerms: []string{"troponina", "supradesnivelamento", "eletrocardiograma", "trombólise"},
			Priority:     1,
		},
		{
			Category: CategoryProtocol, Slug: "avc", CanonicalName: "Protocolo de AVC",
			Keywords:     []string{"avc", "acidente vascular cerebral", "derrame"},
			ContextTerms: []string{"trombólise", "janela terapêutica", "déficit"},
			Priority:     1,
		},
		{
			Category: CategoryProtocol, Slug: "hemorragia-pos-parto", CanonicalName: "Hemorragia Pós-Parto",
			Keywords:     []string{"hemorragia pós-parto", "hpp", "atonia uterina"},
			ContextTerms: []string{"ocitocina", "sangramento", "puerpério"},
			Priority:     1,
		},
		{
			Category: CategoryProtocol, Slug: "pre-eclampsia", CanonicalName: "Pré-Eclâmpsia e Eclâmpsia",
			Keywords:     []string{"pré-eclâmpsia", "eclâmpsia", "sulfato de magnésio"},
			ContextTerms: []string{"pressão arterial", "proteinúria", "gestante"},
			Priority:     1,
		},
	}
}

func documentationEntries() []Entry {
	return []Entry{
		{
			Category: CategoryDocumentation, Slug: "evolucao", CanonicalName: "Evolução Clínica",
			Keywords:     []string{"evolução", "soap"},
			ContextTerms: []string{"internado", "plantão"},
		},
		{
			Category: CategoryDocumentation, Slug: "receituario", CanonicalName: "Receituário",
			Keywords:     []string{"receita", "receituário", "prescrição"},
			ContextTerms: []string{"medicamento", "posologia"},
		},
		{
			Category: CategoryDocumentation, Slug: "atestado", CanonicalName: "Atestado Médico",
			Keywords:     []string{"atestado"},
			ContextTerms: []string{"afastamento", "repouso"},
		},
		{
			Category: CategoryDocumentation, Slug: "sumario-alta", CanonicalName: "Sumário de Alta",
			Keywords:     []string{"sumário de alta", "resumo de alta", "alta hospitalar"},
			ContextTerms: []string{"internação"},
		},
		{
			Category: CategoryDocumentation, Slug: "encaminhamento", CanonicalName: "Encaminhamento",
			Keywords:     []string{"encaminhamento", "contrarreferência"},
			ContextTerms: []string{"especialista", "ambulatório"},
		},
	}
}
