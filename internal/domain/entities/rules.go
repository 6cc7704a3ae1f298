package entities

// Rules is the per-project consistency rulebook, loaded from the project's
// rules.yaml. Zero values fall back to Defaults at load time, so a partial
// file only overrides what it names.
type Rules struct {
	RankScale  RankScale       `yaml:"rank_scale" json:"rank_scale"`
	Power      PowerRules      `yaml:"power" json:"power"`
	Dwell      DwellRules      `yaml:"dwell" json:"dwell"`
	Time       TimeRules       `yaml:"time" json:"time"`
	Similarity SimilarityRules `yaml:"similarity" json:"similarity"`
	Gate       GateRules       `yaml:"gate" json:"gate"`
	Markers    MarkerRules     `yaml:"markers" json:"markers"`
	Extraction ExtractionRules `yaml:"extraction" json:"extraction"`
}

// PowerRules bounds power progression and combat outcomes.
type PowerRules struct {
	// MaxRankStep is the most layers a character may advance per chapter.
	MaxRankStep int `yaml:"max_rank_step" json:"max_rank_step"`
	// MaxCombatGap is the largest rank deficit a victor may overcome
	// without an explicit cost.
	MaxCombatGap int `yaml:"max_combat_gap" json:"max_combat_gap"`
}

// DwellRules set minimum story days between advancements.
type DwellRules struct {
	MinLayerDays int `yaml:"min_layer_days" json:"min_layer_days"`
	MinTierDays  int `yaml:"min_tier_days" json:"min_tier_days"`
}

// TimeRules bound story-time movement.
type TimeRules struct {
	MaxDayJump int `yaml:"max_day_jump" json:"max_day_jump"`
}

// SimilarityRules configure fuzzy-name detection. Names scoring at or above
// AliasThreshold merge as aliases; names between SuspectThreshold and
// AliasThreshold are flagged as probable renames.
type SimilarityRules struct {
	Algorithm        string  `yaml:"algorithm" json:"algorithm"` // "lexical" or "semantic"
	AliasThreshold   float64 `yaml:"alias_threshold" json:"alias_threshold"`
	SuspectThreshold float64 `yaml:"suspect_threshold" json:"suspect_threshold"`
}

// GateRules configure the workflow gate.
type GateRules struct {
	BlockingSeverity string `yaml:"blocking_severity" json:"blocking_severity"`
	MaxRetries       int    `yaml:"max_retries" json:"max_retries"`
}

// MarkerRules are the phrase vocabularies that let prose justify what the
// rules would otherwise flag. All matching is case-insensitive.
type MarkerRules struct {
	Cost            []string `yaml:"cost" json:"cost"`
	JustifiedChange []string `yaml:"justified_change" json:"justified_change"`
	Reveal          []string `yaml:"reveal" json:"reveal"`
	Identity        []string `yaml:"identity" json:"identity"`
	Motive          []string `yaml:"motive" json:"motive"`
	Villain         []string `yaml:"villain" json:"villain"`
}

// ExtractionRules tune the lexical extractor.
type ExtractionRules struct {
	// AbsenceWindow is how many recent chapters an entity may skip before
	// total extraction silence becomes suspicious.
	AbsenceWindow int `yaml:"absence_window" json:"absence_window"`
	// ContextWindow is how many bytes around a match are scanned for an
	// owning character or a justifying marker.
	ContextWindow int `yaml:"context_window" json:"context_window"`
}

// DefaultRules returns the built-in rulebook for eastern-fantasy serials.
func DefaultRules() Rules {
	return Rules{
		RankScale: RankScale{
			Tiers: []string{
				"Qi-Gathering", "Foundation", "Core Formation",
				"Nascent Soul", "Spirit Severing", "Dao Seeking",
			},
			LayersPerTier: 9,
		},
		Power: PowerRules{MaxRankStep: 3, MaxCombatGap: 5},
		Dwell: DwellRules{MinLayerDays: 7, MinTierDays: 30},
		Time:  TimeRules{MaxDayJump: 10},
		Similarity: SimilarityRules{
			Algorithm:        "lexical",
			AliasThreshold:   0.85,
			SuspectThreshold: 0.55,
		},
		Gate: GateRules{BlockingSeverity: "high", MaxRetries: 3},
		Markers: MarkerRules{
			Cost: []string{
				"at the cost of", "paid with", "burned his lifeblood",
				"burned her lifeblood", "crippled", "grievously wounded",
				"sacrificed", "sealed his cultivation", "sealed her cultivation",
				"backlash", "forbidden technique",
			},
			JustifiedChange: []string{
				"reforged his body", "reforged her body", "shattered and rebuilt",
				"awakened a new", "bloodline awakening", "body tempering rebirth",
			},
			Reveal: []string{
				"revealed to be", "unmasked", "turned out to be",
				"was in truth", "all along",
			},
			Identity: []string{
				"none other than", "the same person as", "in disguise",
			},
			Motive: []string{
				"because", "avenge", "revenge", "coveted", "ordered by",
				"grudge", "humiliated", "owed", "bounty",
			},
			Villain: []string{
				"sneered", "ambushed", "schemed", "plotted against",
				"betrayed", "assassin",
			},
		},
		Extraction: ExtractionRules{AbsenceWindow: 3, ContextWindow: 240},
	}
}

// ApplyDefaults fills any unset rule group from DefaultRules.
func (r *Rules) ApplyDefaults() {
	d := DefaultRules()
	if len(r.RankScale.Tiers) == 0 {
		r.RankScale.Tiers = d.RankScale.Tiers
	}
	if r.RankScale.LayersPerTier == 0 {
		r.RankScale.LayersPerTier = d.RankScale.LayersPerTier
	}
	if r.Power.MaxRankStep == 0 {
		r.Power.MaxRankStep = d.Power.MaxRankStep
	}
	if r.Power.MaxCombatGap == 0 {
		r.Power.MaxCombatGap = d.Power.MaxCombatGap
	}
	if r.Dwell.MinLayerDays == 0 {
		r.Dwell.MinLayerDays = d.Dwell.MinLayerDays
	}
	if r.Dwell.MinTierDays == 0 {
		r.Dwell.MinTierDays = d.Dwell.MinTierDays
	}
	if r.Time.MaxDayJump == 0 {
		r.Time.MaxDayJump = d.Time.MaxDayJump
	}
	if r.Similarity.Algorithm == "" {
		r.Similarity.Algorithm = d.Similarity.Algorithm
	}
	if r.Similarity.AliasThreshold == 0 {
		r.Similarity.AliasThreshold = d.Similarity.AliasThreshold
	}
	if r.Similarity.SuspectThreshold == 0 {
		r.Similarity.SuspectThreshold = d.Similarity.SuspectThreshold
	}
	if r.Gate.BlockingSeverity == "" {
		r.Gate.BlockingSeverity = d.Gate.BlockingSeverity
	}
	if r.Gate.MaxRetries == 0 {
		r.Gate.MaxRetries = d.Gate.MaxRetries
	}
	if len(r.Markers.Cost) == 0 {
		r.Markers.Cost = d.Markers.Cost
	}
	if len(r.Markers.JustifiedChange) == 0 {
		r.Markers.JustifiedChange = d.Markers.JustifiedChange
	}
	if len(r.Markers.Reveal) == 0 {
		r.Markers.Reveal = d.Markers.Reveal
	}
	if len(r.Markers.Identity) == 0 {
		r.Markers.Identity = d.Markers.Identity
	}
	if len(r.Markers.Motive) == 0 {
		r.Markers.Motive = d.Markers.Motive
	}
	if len(r.Markers.Villain) == 0 {
		r.Markers.Villain = d.Markers.Villain
	}
	if r.Extraction.AbsenceWindow == 0 {
		r.Extraction.AbsenceWindow = d.Extraction.AbsenceWindow
	}
	if r.Extraction.ContextWindow == 0 {
		r.Extraction.ContextWindow = d.Extraction.ContextWindow
	}
}

// BlockingSeverity parses the configured gate threshold, falling back to
// high on bad input.
func (r *Rules) BlockingSeverity() Severity {
	s, err := ParseSeverity(r.Gate.BlockingSeverity)
	if err != nil {
		return SeverityHigh
	}
	return s
}
