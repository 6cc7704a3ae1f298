package services

import (
	"context"
	"fmt"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
)

// WorldSnapshot is the checker's read-only view of committed history at the
// moment a chapter is validated.
type WorldSnapshot struct {
	Aliases       map[entities.EntityKind]map[string][]string
	Canonical     map[entities.EntityKind]map[string]string
	Identities    map[string]string
	Ranks         map[string]entities.Rank
	RankDay       map[string]int // story day of each character's last rank record
	Constitutions map[string]string
	CurrentDay    int
	HighestChap   int
	LastSeen      map[string]int // characters only
}

// Known converts the snapshot to the extractor's alias view.
func (s *WorldSnapshot) Known() KnownWorld {
	return KnownWorld{Aliases: s.Aliases}
}

// ConstraintService derives snapshots and generation constraints from the
// ledger. Derivation never writes, so calling it twice for the same state
// yields the same constraints.
type ConstraintService struct {
	ledger ports.Ledger
	rules  entities.Rules
}

// NewConstraintService creates a new constraint service.
func NewConstraintService(ledger ports.Ledger, rules entities.Rules) *ConstraintService {
	return &ConstraintService{ledger: ledger, rules: rules}
}

// Snapshot loads the committed world state.
func (s *ConstraintService) Snapshot(ctx context.Context) (*WorldSnapshot, error) {
	snap := &WorldSnapshot{
		Aliases:       make(map[entities.EntityKind]map[string][]string),
		Canonical:     make(map[entities.EntityKind]map[string]string),
		Ranks:         make(map[string]entities.Rank),
		RankDay:       make(map[string]int),
		Constitutions: make(map[string]string),
	}

	for _, kind := range entities.NamedKinds {
		aliases, err := s.ledger.AllAliases(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("loading %s aliases: %w", kind, err)
		}
		snap.Aliases[kind] = aliases

		current, err := s.ledger.CurrentByKind(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("loading %s records: %w", kind, err)
		}
		canonical := make(map[string]string, len(current))
		for _, f := range current {
			canonical[f.EntityKey] = f.Value
		}
		snap.Canonical[kind] = canonical
	}

	identities, err := s.ledger.Identities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading identities: %w", err)
	}
	snap.Identities = identities

	dayAt, err := s.dayByChapter(ctx)
	if err != nil {
		return nil, err
	}

	powers, err := s.ledger.CurrentByKind(ctx, entities.KindPowerLevel)
	if err != nil {
		return nil, fmt.Errorf("loading power levels: %w", err)
	}
	for _, f := range powers {
		if f.Rank == nil {
			continue
		}
		snap.Ranks[f.EntityKey] = *f.Rank
		snap.RankDay[f.EntityKey] = dayAsOf(dayAt, f.ChapterIndex)
	}

	consts, err := s.ledger.CurrentByKind(ctx, entities.KindConstitution)
	if err != nil {
		return nil, fmt.Errorf("loading constitutions: %w", err)
	}
	for _, f := range consts {
		snap.Constitutions[f.EntityKey] = f.Value
	}

	snap.CurrentDay, err = s.ledger.CurrentDay(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading current day: %w", err)
	}
	snap.HighestChap, err = s.ledger.HighestChapter(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading highest chapter: %w", err)
	}
	snap.LastSeen, err = s.ledger.LastSeen(ctx, entities.KindCharacter)
	if err != nil {
		return nil, fmt.Errorf("loading last seen: %w", err)
	}
	return snap, nil
}

// Constraints builds the constraint set for the given chapter from the
// current snapshot plus unresolved violations of escalated chapters.
func (s *ConstraintService) Constraints(ctx context.Context, chapterIndex int) (*entities.ConstraintSet, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	set := &entities.ConstraintSet{
		ChapterIndex:  chapterIndex,
		MaxRankStep:   s.rules.Power.MaxRankStep,
		CurrentDay:    snap.CurrentDay,
		MaxDayJump:    s.rules.Time.MaxDayJump,
		Constitutions: make(map[string]string),
	}
	for kind, canonical := range snap.Canonical {
		if len(canonical) == 0 {
			continue
		}
		if set.LockedNames == nil {
			set.LockedNames = make(map[entities.EntityKind]map[string]string)
		}
		names := make(map[string]string, len(canonical))
		for key, name := range canonical {
			names[key] = name
		}
		set.LockedNames[kind] = names
	}
	if len(snap.Ranks) > 0 {
		set.PowerCeilings = make(map[string]entities.Rank, len(snap.Ranks))
		for key, rank := range snap.Ranks {
			set.PowerCeilings[displayName(snap, key)] = rank
		}
	}
	for key, c := range snap.Constitutions {
		set.Constitutions[displayName(snap, key)] = c
	}

	chapters, err := s.ledger.ListChapters(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading chapters: %w", err)
	}
	for _, ch := range chapters {
		if ch.Status != entities.StatusEscalated || ch.Report == nil {
			continue
		}
		for _, v := range ch.Report.BlockingViolations(s.rules.BlockingSeverity()) {
			set.Forbidden = append(set.Forbidden, v.ConstraintCallout())
		}
	}
	return set, nil
}

// dayByChapter maps each chapter index to the story day committed in it.
func (s *ConstraintService) dayByChapter(ctx context.Context) (map[int]int, error) {
	records, err := s.ledger.History(ctx, entities.KindStoryTime, "story")
	if err != nil {
		return nil, fmt.Errorf("loading story time: %w", err)
	}
	out := make(map[int]int, len(records))
	for _, f := range records {
		if f.Day > out[f.ChapterIndex] {
			out[f.ChapterIndex] = f.Day
		}
	}
	return out, nil
}

// dayAsOf returns the latest story day at or before a chapter.
func dayAsOf(dayAt map[int]int, chapterIndex int) int {
	day := 0
	for ch, d := range dayAt {
		if ch <= chapterIndex && d > day {
			day = d
		}
	}
	return day
}

// displayName prefers the canonical character name over the raw key.
func displayName(snap *WorldSnapshot, key string) string {
	if name, ok := snap.Canonical[entities.KindCharacter][key]; ok {
		return name
	}
	return key
}
