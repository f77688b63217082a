package scoring

// group is a labelled keyword set. Groups are tested in slice order and the
// first hit wins, so overlapping groups must stay ordered.
type group struct {
	label    string
	keywords []string
}

var (
	reproducibilityTerms = []string{"dataset", "ipfs", "open data", "repository", "protocol", "supplementary", "replicate"}
	methodologyTerms     = []string{"control", "randomized", "double-blind", "placebo", "cohort", "statistical", "p-value", "in vitro", "in vivo", "sample"}
	noveltyTerms         = []string{"novel", "first", "breakthrough", "new approach", "unprecedented", "prototype"}
	impactTerms          = []string{"clinical", "therapeutic", "treatment", "patient", "disease", "longevity", "biotech", "genomics", "drug"}
)

var destinationGroups = []group{
	{"HairDAO", []string{"hair", "follicle", "alopecia", "scalp", "dermatology"}},
	{"VitaDAO", []string{"longevity", "aging", "senescence", "lifespan", "geroscience", "senolytic"}},
	{"ValleyDAO", []string{"fermentation", "bioeconomy", "agriculture", "plant", "enzyme", "synthetic biology"}},
	{"AthenaDAO", []string{"women", "pregnancy", "menopause", "endometriosis", "fertility", "ivf", "maternal"}},
	{"CryoDAO", []string{"cryopreservation", "cryogenics", "freezing", "tissue storage", "vitrification"}},
	{"PsyDAO", []string{"psychedelic", "psilocybin", "mdma", "ketamine", "lsd", "psychotherapy"}},
	{"CerebrumDAO", []string{"neurodegeneration", "alzheimer", "parkinson", "brain health", "dementia", "cerebral", "neuron"}},
	{"Curetopia", []string{"rare disease", "orphan drug", "genetic disorder", "inherited", "monogenic"}},
	{"Long COVID Labs", []string{"long covid", "post-viral", "chronic fatigue", "post-acute", "sars-cov-2 sequelae"}},
	{"Quantum Biology DAO", []string{"quantum biology", "quantum microscope", "photosynthesis", "quantum coherence", "tunneling"}},
}

var categoryGroups = []group{
	{"Genomics", []string{"genomic", "genomics", "dna", "rna"}},
	{"Drug Discovery", []string{"drug", "compound", "therapeutic"}},
	{"Longevity", []string{"longevity", "aging"}},
	{"Clinical Trials", []string{"clinical", "trial", "patient"}},
	{"Biotech", []string{"synthetic biology", "biotech", "enzyme"}},
	{"Psychedelic Medicine", []string{"psychedelic", "psilocybin", "mdma"}},
	{"Neuroscience", []string{"neurodegeneration", "alzheimer", "parkinson", "brain"}},
	{"Rare Diseases", []string{"rare disease", "orphan", "genetic disorder"}},
	{"Cryobiology", []string{"cryopreservation", "cryogenics", "freezing"}},
	{"Post-Viral Syndromes", []string{"long covid", "post-viral"}},
	{"Quantum Biology", []string{"quantum", "microscope"}},
}

// Destinations lists every partner a submission can be routed to, in
// match order.
func Destinations() []string {
	out := make([]string, 0, len(destinationGroups))
	for _, g := range destinationGroups {
		out = append(out, g.label)
	}
	return out
}
