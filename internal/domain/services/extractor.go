package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pennwright/saga/internal/domain/entities"
)

// KnownWorld is the extractor's view of committed history: every surface
// form ever seen, per entity key, per kind.
type KnownWorld struct {
	Aliases map[entities.EntityKind]map[string][]string
}

// MarkerHit is one occurrence of a configured marker phrase.
type MarkerHit struct {
	Class string        `json:"class"`
	Span  entities.Span `json:"span"`
}

// Combat is one detected fight outcome between two characters.
type Combat struct {
	WinnerKey string        `json:"winner_key"`
	LoserKey  string        `json:"loser_key"`
	Span      entities.Span `json:"span"`
}

// IdentityClaim is a phrase asserting that two established characters are
// the same person.
type IdentityClaim struct {
	LeftKey  string        `json:"left_key"`
	RightKey string        `json:"right_key"`
	Span     entities.Span `json:"span"`
}

// ExtractionResult is everything the lexical pass pulled from one chapter.
type ExtractionResult struct {
	Candidates []entities.CandidateFact `json:"candidates"`
	Markers    []MarkerHit              `json:"markers,omitempty"`
	Combats    []Combat                 `json:"combats,omitempty"`
	Identities []IdentityClaim          `json:"identities,omitempty"`
	Day        int                      `json:"day,omitempty"` // highest day mention, 0 when absent
}

// MarkerNear reports whether a marker of the given class occurs within
// window bytes of the span.
func (r *ExtractionResult) MarkerNear(class string, span entities.Span, window int) bool {
	for _, m := range r.Markers {
		if m.Class != class {
			continue
		}
		if m.Span.Start <= span.End+window && m.Span.End >= span.Start-window {
			return true
		}
	}
	return false
}

// HasMarker reports whether any marker of the class occurs in the chapter.
func (r *ExtractionResult) HasMarker(class string) bool {
	for _, m := range r.Markers {
		if m.Class == class {
			return true
		}
	}
	return false
}

const (
	// MarkerCost through MarkerVillain name the configured marker classes.
	MarkerCost            = "cost"
	MarkerJustifiedChange = "justified_change"
	MarkerReveal          = "reveal"
	MarkerIdentity        = "identity"
	MarkerMotive          = "motive"
	MarkerVillain         = "villain"
)

// sentence-initial words that look like proper nouns but never start names
var nameStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "he": true, "she": true, "they": true,
	"it": true, "but": true, "and": true, "when": true, "after": true,
	"before": true, "then": true, "inside": true, "outside": true,
	"meanwhile": true, "suddenly": true, "day": true, "chapter": true,
}

var (
	dayRe          = regexp.MustCompile(`(?i)\bday\s+(\d+)\b`)
	factionRe      = regexp.MustCompile(`\b((?:[A-Z][a-z]+[ -]){1,3}(?:Sect|Clan|Pavilion|Palace|Guild|Order|Hall|Alliance|Dynasty|Court))\b`)
	locationRe     = regexp.MustCompile(`\b((?:[A-Z][a-z]+[ -]){1,3}(?:City|Mountain|Peak|Valley|Forest|River|Province|Region|Island|Market|Abyss))\b`)
	constitutionRe = regexp.MustCompile(`\b((?:[A-Z][a-z]+\s+){1,3}(?:Physique|Constitution|Bloodline))\b`)
	itemRe         = regexp.MustCompile(`\b((?:[A-Z][a-z]+[ -]){1,3}(?:Sword|Blade|Saber|Spear|Pill|Elixir|Talisman|Cauldron|Ring|Flame|Seal))\b`)
	properRe       = regexp.MustCompile(`\b([A-Z][a-z]+(?:[ -][A-Z][a-z]+){1,2})\b`)
	combatRe       = regexp.MustCompile(`(?i)\b(defeated|slew|struck down|crushed|overpowered|cut down|killed)\b`)
)

// Extractor performs the deterministic lexical pass over chapter text. It
// never writes anything; candidates become facts only if the workflow gate
// commits them.
type Extractor struct {
	rules  entities.Rules
	rankRe *regexp.Regexp
}

// NewExtractor creates an extractor for one project's rulebook.
func NewExtractor(rules entities.Rules) *Extractor {
	tiers := make([]string, len(rules.RankScale.Tiers))
	for i, t := range rules.RankScale.Tiers {
		tiers[i] = regexp.QuoteMeta(t)
	}
	rankRe := regexp.MustCompile(
		`(?i)\b(` + strings.Join(tiers, "|") + `)(?:\s+realm)?(?:,)?(?:\s+(?:layer|level|stage)\s+(\d+))?\b`)
	return &Extractor{rules: rules, rankRe: rankRe}
}

type mention struct {
	key     string
	surface string
	span    entities.Span
	known   bool
}

// Extract runs the lexical pass over one chapter's text.
func (e *Extractor) Extract(text string, chapterIndex int, known KnownWorld) *ExtractionResult {
	res := &ExtractionResult{}

	res.Markers = e.findMarkers(text)

	// Structured kinds first, so their spans can mask the generic
	// proper-noun pass.
	factions := e.suffixMentions(text, factionRe, known.Aliases[entities.KindFaction])
	locations := e.suffixMentions(text, locationRe, known.Aliases[entities.KindLocation])
	items := e.suffixMentions(text, itemRe, known.Aliases[entities.KindItem])
	constitutions := matchSpans(text, constitutionRe)
	ranks := matchSpans(text, e.rankRe)

	masked := make([]entities.Span, 0, len(factions)+len(locations)+len(items)+len(constitutions)+len(ranks))
	for _, m := range factions {
		masked = append(masked, m.span)
	}
	for _, m := range locations {
		masked = append(masked, m.span)
	}
	for _, m := range items {
		masked = append(masked, m.span)
	}
	masked = append(masked, constitutions...)
	masked = append(masked, ranks...)

	characters := e.characterMentions(text, known.Aliases[entities.KindCharacter], masked)

	res.Candidates = append(res.Candidates, e.namedCandidates(entities.KindCharacter, characters, chapterIndex, known)...)
	res.Candidates = append(res.Candidates, e.namedCandidates(entities.KindFaction, factions, chapterIndex, known)...)
	res.Candidates = append(res.Candidates, e.namedCandidates(entities.KindLocation, locations, chapterIndex, known)...)
	res.Candidates = append(res.Candidates, e.namedCandidates(entities.KindItem, items, chapterIndex, known)...)

	res.Candidates = append(res.Candidates, e.rankCandidates(text, chapterIndex, characters, res)...)
	res.Candidates = append(res.Candidates, e.constitutionCandidates(text, chapterIndex, characters, constitutions, res)...)

	if day, span, ok := e.latestDay(text); ok {
		res.Day = day
		res.Candidates = append(res.Candidates, entities.CandidateFact{
			FactRecord: entities.FactRecord{
				ID:           uuid.New().String(),
				Kind:         entities.KindStoryTime,
				EntityKey:    "story",
				Value:        fmt.Sprintf("day %d", day),
				Day:          day,
				ChapterIndex: chapterIndex,
				CreatedAt:    time.Now(),
			},
			Confidence: 1.0,
			Evidence:   span,
		})
	}

	res.Combats = e.findCombats(text, characters)
	res.Identities = e.findIdentityClaims(res.Markers, characters)

	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].Evidence.Start < res.Candidates[j].Evidence.Start
	})
	return res
}

// characterMentions finds every character reference: known aliases matched
// literally, plus unmasked capitalized multiword names as new candidates.
func (e *Extractor) characterMentions(text string, aliases map[string][]string, masked []entities.Span) []mention {
	var out []mention
	taken := append([]entities.Span(nil), masked...)

	// Longest aliases first so "Lin Feng Zi" wins over "Lin Feng".
	type aliasRef struct {
		key  string
		name string
	}
	var refs []aliasRef
	for key, names := range aliases {
		for _, n := range names {
			refs = append(refs, aliasRef{key: key, name: n})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if len(refs[i].name) != len(refs[j].name) {
			return len(refs[i].name) > len(refs[j].name)
		}
		return refs[i].name < refs[j].name
	})
	for _, ref := range refs {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(ref.name) + `\b`)
		if err != nil {
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			span := spanAt(text, loc[0], loc[1])
			if overlapsAny(span, taken) {
				continue
			}
			taken = append(taken, span)
			out = append(out, mention{key: ref.key, surface: text[loc[0]:loc[1]], span: span, known: true})
		}
	}

	for _, loc := range properRe.FindAllStringSubmatchIndex(text, -1) {
		span := spanAt(text, loc[2], loc[3])
		if overlapsAny(span, taken) {
			continue
		}
		surface := text[loc[2]:loc[3]]
		if nameStopwords[strings.ToLower(strings.Fields(surface)[0])] {
			continue
		}
		if e.isTierLabel(surface) {
			continue
		}
		taken = append(taken, span)
		out = append(out, mention{key: entities.EntityKeyFor(surface), surface: surface, span: span})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].span.Start < out[j].span.Start })
	return out
}

func (e *Extractor) isTierLabel(surface string) bool {
	_, ok := e.rules.RankScale.TierIndex(surface)
	return ok
}

// suffixMentions matches one suffix-keyed pattern and resolves each hit
// against known aliases.
func (e *Extractor) suffixMentions(text string, re *regexp.Regexp, aliases map[string][]string) []mention {
	var out []mention
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		start := trimDeterminer(text, loc[2], loc[3])
		surface := text[start:loc[3]]
		span := spanAt(text, start, loc[3])
		key, known := resolveAlias(surface, aliases)
		if !known {
			key = entities.EntityKeyFor(surface)
		}
		out = append(out, mention{key: key, surface: surface, span: span, known: known})
	}
	return out
}

// namedCandidates aggregates mentions into one candidate per entity key.
func (e *Extractor) namedCandidates(kind entities.EntityKind, mentions []mention, chapterIndex int, known KnownWorld) []entities.CandidateFact {
	byKey := make(map[string]*entities.CandidateFact)
	var order []string
	for _, m := range mentions {
		c, ok := byKey[m.key]
		if !ok {
			conf := 0.6
			if m.known {
				conf = 1.0
			}
			canonical := m.surface
			if names := known.Aliases[kind][m.key]; len(names) > 0 {
				canonical = names[0]
			}
			c = &entities.CandidateFact{
				FactRecord: entities.FactRecord{
					ID:           uuid.New().String(),
					Kind:         kind,
					EntityKey:    m.key,
					Value:        canonical,
					ChapterIndex: chapterIndex,
					CreatedAt:    time.Now(),
				},
				Confidence: conf,
				Evidence:   m.span,
				NewEntity:  !m.known,
			}
			byKey[m.key] = c
			order = append(order, m.key)
		}
		if !containsString(c.AliasesSeen, m.surface) {
			c.AliasesSeen = append(c.AliasesSeen, m.surface)
		}
	}
	out := make([]entities.CandidateFact, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out
}

// rankCandidates attributes each rank mention to the nearest preceding
// character mention within the context window.
func (e *Extractor) rankCandidates(text string, chapterIndex int, characters []mention, res *ExtractionResult) []entities.CandidateFact {
	latest := make(map[string]*entities.CandidateFact)
	var order []string
	for _, loc := range e.rankRe.FindAllStringSubmatchIndex(text, -1) {
		label := text[loc[2]:loc[3]]
		layer := 0
		if loc[4] >= 0 {
			layer, _ = strconv.Atoi(text[loc[4]:loc[5]])
		}
		rank, ok := e.rules.RankScale.Rank(label, layer)
		if !ok {
			continue
		}
		span := spanAt(text, loc[0], loc[1])
		owner := nearestBefore(characters, span.Start, e.rules.Extraction.ContextWindow)
		if owner == nil {
			continue
		}
		r := rank
		c := &entities.CandidateFact{
			FactRecord: entities.FactRecord{
				ID:           uuid.New().String(),
				Kind:         entities.KindPowerLevel,
				EntityKey:    owner.key,
				Value:        rank.String(),
				Rank:         &r,
				ChapterIndex: chapterIndex,
				CreatedAt:    time.Now(),
			},
			Confidence: 0.9,
			Evidence:   span,
		}
		if res.MarkerNear(MarkerCost, span, e.rules.Extraction.ContextWindow) {
			c.Tags = append(c.Tags, entities.TagCostJustified)
		}
		if _, seen := latest[owner.key]; !seen {
			order = append(order, owner.key)
		}
		// keep the last rank statement per character
		latest[owner.key] = c
	}
	out := make([]entities.CandidateFact, 0, len(order))
	for _, k := range order {
		out = append(out, *latest[k])
	}
	return out
}

func (e *Extractor) constitutionCandidates(text string, chapterIndex int, characters []mention, spans []entities.Span, res *ExtractionResult) []entities.CandidateFact {
	var out []entities.CandidateFact
	seen := make(map[string]bool)
	for _, span := range spans {
		owner := nearestBefore(characters, span.Start, e.rules.Extraction.ContextWindow)
		if owner == nil || seen[owner.key] {
			continue
		}
		seen[owner.key] = true
		c := entities.CandidateFact{
			FactRecord: entities.FactRecord{
				ID:           uuid.New().String(),
				Kind:         entities.KindConstitution,
				EntityKey:    owner.key,
				Value:        strings.TrimSpace(text[span.Start:span.End]),
				ChapterIndex: chapterIndex,
				CreatedAt:    time.Now(),
			},
			Confidence: 0.9,
			Evidence:   span,
		}
		if res.MarkerNear(MarkerJustifiedChange, span, e.rules.Extraction.ContextWindow) {
			c.Tags = append(c.Tags, entities.TagJustifiedChange)
		}
		out = append(out, c)
	}
	return out
}

func (e *Extractor) latestDay(text string) (int, entities.Span, bool) {
	best, found := 0, false
	var span entities.Span
	for _, loc := range dayRe.FindAllStringSubmatchIndex(text, -1) {
		day, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		if !found || day > best {
			best = day
			span = spanAt(text, loc[0], loc[1])
			found = true
		}
	}
	return best, span, found
}

func (e *Extractor) findMarkers(text string) []MarkerHit {
	lower := strings.ToLower(text)
	classes := map[string][]string{
		MarkerCost:            e.rules.Markers.Cost,
		MarkerJustifiedChange: e.rules.Markers.JustifiedChange,
		MarkerReveal:          e.rules.Markers.Reveal,
		MarkerIdentity:        e.rules.Markers.Identity,
		MarkerMotive:          e.rules.Markers.Motive,
		MarkerVillain:         e.rules.Markers.Villain,
	}
	var out []MarkerHit
	for class, phrases := range classes {
		for _, phrase := range phrases {
			needle := strings.ToLower(phrase)
			from := 0
			for {
				i := strings.Index(lower[from:], needle)
				if i < 0 {
					break
				}
				start := from + i
				out = append(out, MarkerHit{Class: class, Span: spanAt(text, start, start+len(needle))})
				from = start + len(needle)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Class < out[j].Class
	})
	return out
}

// findCombats pairs each combat verb with the nearest character before and
// after it. Passive voice flips the roles: "A was defeated by B" crowns B.
func (e *Extractor) findCombats(text string, characters []mention) []Combat {
	var out []Combat
	for _, loc := range combatRe.FindAllStringIndex(text, -1) {
		before := nearestBefore(characters, loc[0], e.rules.Extraction.ContextWindow)
		after := nearestAfter(characters, loc[1], e.rules.Extraction.ContextWindow)
		if before == nil || after == nil || before.key == after.key {
			continue
		}
		winner, loser := before, after
		if passiveVoice(text, loc[0]) {
			winner, loser = after, before
		}
		out = append(out, Combat{
			WinnerKey: winner.key,
			LoserKey:  loser.key,
			Span:      spanAt(text, loc[0], loc[1]),
		})
	}
	return out
}

var passiveAuxiliaries = map[string]bool{
	"was": true, "were": true, "is": true, "are": true,
	"been": true, "being": true, "got": true,
}

// passiveVoice reports whether the word right before pos is a passive
// auxiliary.
func passiveVoice(text string, pos int) bool {
	head := strings.TrimRight(text[:pos], " \n\t")
	if i := strings.LastIndexAny(head, " \n\t"); i >= 0 {
		head = head[i+1:]
	}
	return passiveAuxiliaries[strings.ToLower(head)]
}

// findIdentityClaims pairs each identity marker with the nearest known
// character on either side. Claims over brand-new names are resolved by the
// suspect-rename pass instead.
func (e *Extractor) findIdentityClaims(markers []MarkerHit, characters []mention) []IdentityClaim {
	var known []mention
	for _, m := range characters {
		if m.known {
			known = append(known, m)
		}
	}
	var out []IdentityClaim
	for _, mk := range markers {
		if mk.Class != MarkerIdentity {
			continue
		}
		left := nearestBefore(known, mk.Span.Start, e.rules.Extraction.ContextWindow)
		right := nearestAfter(known, mk.Span.End, e.rules.Extraction.ContextWindow)
		if left == nil || right == nil || left.key == right.key {
			continue
		}
		out = append(out, IdentityClaim{LeftKey: left.key, RightKey: right.key, Span: mk.Span})
	}
	return out
}

func resolveAlias(surface string, aliases map[string][]string) (string, bool) {
	norm := entities.NormalizeName(surface)
	for key, names := range aliases {
		for _, n := range names {
			if entities.NormalizeName(n) == norm {
				return key, true
			}
		}
	}
	return "", false
}

func nearestBefore(mentions []mention, pos, window int) *mention {
	var best *mention
	for i := range mentions {
		m := &mentions[i]
		if m.span.End <= pos && pos-m.span.End <= window {
			if best == nil || m.span.End > best.span.End {
				best = m
			}
		}
	}
	return best
}

func nearestAfter(mentions []mention, pos, window int) *mention {
	var best *mention
	for i := range mentions {
		m := &mentions[i]
		if m.span.Start >= pos && m.span.Start-pos <= window {
			if best == nil || m.span.Start < best.span.Start {
				best = m
			}
		}
	}
	return best
}

func matchSpans(text string, re *regexp.Regexp) []entities.Span {
	var out []entities.Span
	for _, loc := range re.FindAllStringIndex(text, -1) {
		out = append(out, spanAt(text, trimDeterminer(text, loc[0], loc[1]), loc[1]))
	}
	return out
}

// determiners and possessives that capitalized-phrase patterns swallow at
// sentence starts
var determiners = map[string]bool{
	"the": true, "a": true, "an": true, "his": true, "her": true,
	"their": true, "its": true, "my": true, "our": true, "your": true,
}

// trimDeterminer moves the span start past a leading determiner.
func trimDeterminer(text string, start, end int) int {
	fields := strings.Fields(text[start:end])
	if len(fields) > 1 && determiners[strings.ToLower(fields[0])] {
		return start + strings.Index(text[start:end], fields[1])
	}
	return start
}

func spanAt(text string, start, end int) entities.Span {
	const pad = 40
	lo, hi := start-pad, end+pad
	if lo < 0 {
		lo = 0
	}
	if hi > len(text) {
		hi = len(text)
	}
	return entities.Span{Start: start, End: end, Excerpt: strings.TrimSpace(text[lo:hi])}
}

func overlapsAny(span entities.Span, spans []entities.Span) bool {
	for _, s := range spans {
		if span.Start < s.End && s.Start < span.End {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
