package services

import (
	"context"
	"fmt"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
)

// Checker validates one chapter's extraction result against committed
// history. It is read-only: every finding goes into the report and nothing
// touches the ledger.
type Checker struct {
	scorer ports.NameScorer
	rules  entities.Rules
}

// NewChecker creates a new consistency checker.
func NewChecker(scorer ports.NameScorer, rules entities.Rules) *Checker {
	return &Checker{scorer: scorer, rules: rules}
}

// Check runs every consistency rule over the extraction result.
func (c *Checker) Check(ctx context.Context, chapterIndex int, ext *ExtractionResult, snap *WorldSnapshot) (*entities.ValidationReport, error) {
	report := &entities.ValidationReport{ChapterIndex: chapterIndex}

	candidates, err := c.checkNames(ctx, ext, snap, report)
	if err != nil {
		return nil, err
	}
	c.checkIdentityClaims(ext, snap, report)
	c.checkPower(candidates, snap, report)
	c.checkCombat(ext, snap, report)
	c.checkDwell(candidates, ext, snap, report)
	c.checkTime(ext, snap, report)
	c.checkConstitutions(candidates, snap, report)
	c.checkPlotLogic(ext, report)
	c.checkExtractionGap(candidates, ext, snap, report)

	for _, cand := range candidates {
		report.Proposed = append(report.Proposed, cand.FactRecord)
	}
	return report, nil
}

// checkNames resolves new named entities against known aliases. A score at
// or above the alias threshold merges the mention into the existing entity;
// a score in the suspect band is a probable rename and blocks, unless the
// chapter explicitly reveals the two names to be the same person.
func (c *Checker) checkNames(ctx context.Context, ext *ExtractionResult, snap *WorldSnapshot, report *entities.ValidationReport) ([]entities.CandidateFact, error) {
	// Locations and items fall under the faction naming category; the
	// violation detail names the kind.
	categories := map[entities.EntityKind]entities.Category{
		entities.KindCharacter: entities.CategoryCharacterName,
		entities.KindFaction:   entities.CategoryFactionName,
		entities.KindLocation:  entities.CategoryFactionName,
		entities.KindItem:      entities.CategoryFactionName,
	}

	out := make([]entities.CandidateFact, 0, len(ext.Candidates))
	for _, cand := range ext.Candidates {
		category, checked := categories[cand.Kind]
		if !checked || !cand.NewEntity {
			out = append(out, cand)
			continue
		}

		bestKey, bestName, bestScore, err := c.bestMatch(ctx, cand.Value, snap.Aliases[cand.Kind])
		if err != nil {
			return nil, err
		}

		switch {
		case bestScore >= c.rules.Similarity.AliasThreshold:
			// Same entity under a close variant; fold into it.
			cand.EntityKey = bestKey
			cand.NewEntity = false
			if canonical, ok := snap.Canonical[cand.Kind][bestKey]; ok {
				cand.Value = canonical
			}
		case bestScore >= c.rules.Similarity.SuspectThreshold:
			window := c.rules.Extraction.ContextWindow
			if cand.Kind == entities.KindCharacter && ext.MarkerNear(MarkerReveal, cand.Evidence, window) {
				// Explicit reveal: a masked name and a known one are the
				// same person. Keep both entities, link them.
				report.Identities = append(report.Identities, entities.IdentityLink{
					CanonicalKey: bestKey,
					OtherKey:     cand.EntityKey,
				})
			} else {
				report.Add(entities.Violation{
					Category:  category,
					Severity:  entities.SeverityHigh,
					EntityKey: bestKey,
					Detail: fmt.Sprintf("%q resembles established %s %q (similarity %.2f); use the established name or introduce a clearly distinct one",
						cand.Value, cand.Kind, bestName, bestScore),
					Evidence: cand.Evidence,
				})
				// Do not commit a probable misspelling as canon.
				continue
			}
		}
		out = append(out, cand)
	}
	return out, nil
}

// checkIdentityClaims flags prose that merges two established characters
// into one person. With a reveal marker nearby the claim becomes an
// identity link instead; an already linked pair passes silently.
func (c *Checker) checkIdentityClaims(ext *ExtractionResult, snap *WorldSnapshot, report *entities.ValidationReport) {
	window := c.rules.Extraction.ContextWindow
	for _, claim := range ext.Identities {
		if sameIdentity(snap.Identities, claim.LeftKey, claim.RightKey) {
			continue
		}
		if ext.MarkerNear(MarkerReveal, claim.Span, window) {
			// "X was revealed to be Y": Y is the true name.
			report.Identities = append(report.Identities, entities.IdentityLink{
				CanonicalKey: claim.RightKey,
				OtherKey:     claim.LeftKey,
			})
			continue
		}
		report.Add(entities.Violation{
			Category:  entities.CategoryCharacterName,
			Severity:  entities.SeverityHigh,
			EntityKey: claim.LeftKey,
			Detail: fmt.Sprintf("%q and %q are established as separate characters but this chapter treats them as the same person with no reveal",
				displayName(snap, claim.LeftKey), displayName(snap, claim.RightKey)),
			Evidence: claim.Span,
		})
	}
}

// sameIdentity reports whether two keys already resolve to one person.
func sameIdentity(links map[string]string, a, b string) bool {
	if c, ok := links[a]; ok {
		a = c
	}
	if c, ok := links[b]; ok {
		b = c
	}
	return a == b
}

func (c *Checker) bestMatch(ctx context.Context, name string, aliases map[string][]string) (key, match string, score float64, err error) {
	for entityKey, names := range aliases {
		for _, n := range names {
			s, serr := c.scorer.Score(ctx, name, n)
			if serr != nil {
				return "", "", 0, fmt.Errorf("scoring %q against %q: %w", name, n, serr)
			}
			if s > score {
				key, match, score = entityKey, n, s
			}
		}
	}
	return key, match, score, nil
}

// checkPower flags rank regressions without cost and jumps past the
// per-chapter step limit.
func (c *Checker) checkPower(candidates []entities.CandidateFact, snap *WorldSnapshot, report *entities.ValidationReport) {
	for _, cand := range candidates {
		if cand.Kind != entities.KindPowerLevel || cand.Rank == nil {
			continue
		}
		prev, known := snap.Ranks[cand.EntityKey]
		if !known {
			continue
		}
		steps := c.rules.RankScale.StepsBetween(prev, *cand.Rank)
		switch {
		case steps < 0 && !cand.HasTag(entities.TagCostJustified):
			report.Add(entities.Violation{
				Category:  entities.CategoryPowerSystem,
				Severity:  entities.SeverityHigh,
				EntityKey: cand.EntityKey,
				Detail: fmt.Sprintf("%s dropped from %s to %s with no stated cost or injury",
					cand.EntityKey, prev.String(), cand.Rank.String()),
				Evidence: cand.Evidence,
			})
		case steps > c.rules.Power.MaxRankStep:
			report.Add(entities.Violation{
				Category:  entities.CategoryPowerSystem,
				Severity:  entities.SeverityHigh,
				EntityKey: cand.EntityKey,
				Detail: fmt.Sprintf("%s jumped from %s to %s, %d layers in one chapter (limit %d)",
					cand.EntityKey, prev.String(), cand.Rank.String(), steps, c.rules.Power.MaxRankStep),
				Evidence: cand.Evidence,
			})
		}
	}
}

// checkCombat flags victories over far stronger opponents without cost.
func (c *Checker) checkCombat(ext *ExtractionResult, snap *WorldSnapshot, report *entities.ValidationReport) {
	for _, combat := range ext.Combats {
		winner, wok := snap.Ranks[combat.WinnerKey]
		loser, lok := snap.Ranks[combat.LoserKey]
		if !wok || !lok {
			continue
		}
		gap := c.rules.RankScale.StepsBetween(winner, loser)
		if gap <= c.rules.Power.MaxCombatGap {
			continue
		}
		if ext.MarkerNear(MarkerCost, combat.Span, c.rules.Extraction.ContextWindow) {
			continue
		}
		report.Add(entities.Violation{
			Category:  entities.CategoryPowerSystem,
			Severity:  entities.SeverityHigh,
			EntityKey: combat.WinnerKey,
			Detail: fmt.Sprintf("%s (%s) defeated %s (%s), %d layers above, with no stated cost",
				combat.WinnerKey, winner.String(), combat.LoserKey, loser.String(), gap),
			Evidence: combat.Span,
		})
	}
}

// checkDwell flags breakthroughs faster than the configured minimum days.
func (c *Checker) checkDwell(candidates []entities.CandidateFact, ext *ExtractionResult, snap *WorldSnapshot, report *entities.ValidationReport) {
	day := ext.Day
	if day == 0 {
		day = snap.CurrentDay
	}
	for _, cand := range candidates {
		if cand.Kind != entities.KindPowerLevel || cand.Rank == nil {
			continue
		}
		prev, known := snap.Ranks[cand.EntityKey]
		if !known {
			continue
		}
		steps := c.rules.RankScale.StepsBetween(prev, *cand.Rank)
		if steps <= 0 {
			continue
		}
		lastDay, tracked := snap.RankDay[cand.EntityKey]
		if !tracked || lastDay == 0 || day == 0 {
			continue
		}
		elapsed := day - lastDay
		minDays := c.rules.Dwell.MinLayerDays
		unit := "layer"
		if cand.Rank.Tier > prev.Tier {
			minDays = c.rules.Dwell.MinTierDays
			unit = "tier"
		}
		if elapsed < minDays {
			report.Add(entities.Violation{
				Category:  entities.CategoryCultivation,
				Severity:  entities.SeverityWarning,
				EntityKey: cand.EntityKey,
				Detail: fmt.Sprintf("%s broke through a %s after %d day(s); minimum is %d",
					cand.EntityKey, unit, elapsed, minDays),
				Evidence: cand.Evidence,
			})
		}
	}
}

// checkTime flags story time moving backwards or jumping too far.
func (c *Checker) checkTime(ext *ExtractionResult, snap *WorldSnapshot, report *entities.ValidationReport) {
	if ext.Day == 0 || snap.CurrentDay == 0 {
		return
	}
	switch {
	case ext.Day < snap.CurrentDay:
		report.Add(entities.Violation{
			Category:  entities.CategoryCultivation,
			Severity:  entities.SeverityHigh,
			EntityKey: "story",
			Detail: fmt.Sprintf("chapter is set on day %d but the story already reached day %d",
				ext.Day, snap.CurrentDay),
		})
	case ext.Day-snap.CurrentDay > c.rules.Time.MaxDayJump:
		report.Add(entities.Violation{
			Category:  entities.CategoryCultivation,
			Severity:  entities.SeverityHigh,
			EntityKey: "story",
			Detail: fmt.Sprintf("chapter skips from day %d to day %d, past the %d-day limit",
				snap.CurrentDay, ext.Day, c.rules.Time.MaxDayJump),
		})
	}
}

// checkConstitutions flags silent constitution swaps.
func (c *Checker) checkConstitutions(candidates []entities.CandidateFact, snap *WorldSnapshot, report *entities.ValidationReport) {
	for _, cand := range candidates {
		if cand.Kind != entities.KindConstitution {
			continue
		}
		prev, known := snap.Constitutions[cand.EntityKey]
		if !known || entities.NormalizeName(prev) == entities.NormalizeName(cand.Value) {
			continue
		}
		if cand.HasTag(entities.TagJustifiedChange) {
			continue
		}
		report.Add(entities.Violation{
			Category:  entities.CategoryConstitution,
			Severity:  entities.SeverityHigh,
			EntityKey: cand.EntityKey,
			Detail: fmt.Sprintf("%s has the %s but this chapter gives them the %s with no stated cause",
				cand.EntityKey, prev, cand.Value),
			Evidence: cand.Evidence,
		})
	}
}

// checkPlotLogic flags antagonist activity with no stated motive anywhere
// in the chapter. Advisory only: motive is often established earlier.
func (c *Checker) checkPlotLogic(ext *ExtractionResult, report *entities.ValidationReport) {
	if !ext.HasMarker(MarkerVillain) || ext.HasMarker(MarkerMotive) {
		return
	}
	report.Add(entities.Violation{
		Category: entities.CategoryPlotLogic,
		Severity: entities.SeverityAdvisory,
		Detail:   "antagonist acts this chapter but no motive is stated or referenced",
	})
}

// checkExtractionGap flags a chapter where every recently active character
// went silent at once. That usually means extraction missed them, not that
// the cast vanished.
func (c *Checker) checkExtractionGap(candidates []entities.CandidateFact, ext *ExtractionResult, snap *WorldSnapshot, report *entities.ValidationReport) {
	if snap.HighestChap < 1 {
		return
	}
	active := 0
	for _, last := range snap.LastSeen {
		if snap.HighestChap-last < c.rules.Extraction.AbsenceWindow {
			active++
		}
	}
	if active == 0 {
		return
	}
	for _, cand := range candidates {
		if cand.Kind == entities.KindCharacter && !cand.NewEntity {
			return
		}
	}
	report.Add(entities.Violation{
		Category: entities.CategoryExtractionGap,
		Severity: entities.SeverityAdvisory,
		Detail: fmt.Sprintf("none of the %d recently active character(s) appear in this chapter; extraction may have missed them",
			active),
	})
}
