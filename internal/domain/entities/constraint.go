package entities

import (
	"fmt"
	"sort"
	"strings"
)

// ConstraintSet is the read-only snapshot of authoring constraints derived
// from committed history, injected into the next generation request. An
// empty set is valid: the first chapter of a project is unconstrained.
type ConstraintSet struct {
	ChapterIndex int `json:"chapter_index"`

	// LockedNames maps kind -> entity key -> canonical name. Canonical
	// names must be used literally in generated text.
	LockedNames map[EntityKind]map[string]string `json:"locked_names,omitempty"`

	// PowerCeilings holds the current rank per active character.
	PowerCeilings map[string]Rank `json:"power_ceilings,omitempty"`
	MaxRankStep   int             `json:"max_rank_step,omitempty"`

	CurrentDay int `json:"current_day,omitempty"`
	MaxDayJump int `json:"max_day_jump,omitempty"`

	// Constitutions holds the locked constitution per character, stated as
	// immutable facts in the prompt.
	Constitutions map[string]string `json:"constitutions,omitempty"`

	// Forbidden lists natural-language transitions derived from prior
	// unresolved violations, e.g. `do not rename faction "Azure Sword Sect"`.
	Forbidden []string `json:"forbidden,omitempty"`
}

// Empty reports whether the set carries no constraints at all.
func (c *ConstraintSet) Empty() bool {
	return len(c.LockedNames) == 0 &&
		len(c.PowerCeilings) == 0 &&
		c.CurrentDay == 0 &&
		len(c.Constitutions) == 0 &&
		len(c.Forbidden) == 0
}

// PromptText renders the constraint block injected into the writer prompt.
// Output is deterministic so constraint derivation stays idempotent.
func (c *ConstraintSet) PromptText() string {
	if c.Empty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Mandatory continuity constraints\n")
	b.WriteString("Violating any constraint below breaks established canon.\n")

	section := 0
	writeHeader := func(title string) {
		section++
		fmt.Fprintf(&b, "\n### %d. %s\n", section, title)
	}

	if names := c.lockedNamesFor(KindCharacter); len(names) > 0 {
		writeHeader("Locked character names")
		for _, n := range names {
			fmt.Fprintf(&b, "- %s (never rename, never respell)\n", n)
		}
	}
	if names := c.lockedNamesFor(KindFaction); len(names) > 0 {
		writeHeader("Locked faction names")
		for _, n := range names {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		b.WriteString("- Never introduce variant spellings of these factions.\n")
	}
	if names := c.lockedNamesFor(KindLocation); len(names) > 0 {
		writeHeader("Established locations")
		for _, n := range names {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	if names := c.lockedNamesFor(KindItem); len(names) > 0 {
		writeHeader("Named items")
		for _, n := range names {
			fmt.Fprintf(&b, "- %s (name is locked after first mention)\n", n)
		}
	}

	if len(c.PowerCeilings) > 0 {
		writeHeader("Power progression")
		for _, key := range sortedKeys(c.PowerCeilings) {
			rank := c.PowerCeilings[key]
			fmt.Fprintf(&b, "- %s is currently at %s.\n", key, rank.String())
		}
		if c.MaxRankStep > 0 {
			fmt.Fprintf(&b, "- No character may advance more than %d layer(s) this chapter.\n", c.MaxRankStep)
		}
		b.WriteString("- A character must never defeat a far stronger opponent without paying an explicit cost.\n")
	}

	if len(c.Constitutions) > 0 {
		writeHeader("Constitutions (immutable)")
		for _, key := range sortedKeys(c.Constitutions) {
			fmt.Fprintf(&b, "- %s has the %s. It does not change without an explicit, foreshadowed cause.\n",
				key, c.Constitutions[key])
		}
	}

	if c.CurrentDay > 0 {
		writeHeader("Story timeline")
		fmt.Fprintf(&b, "- The story is currently on Day %d. Mark the chapter with a \"Day N\" timestamp.\n", c.CurrentDay)
		if c.MaxDayJump > 0 {
			fmt.Fprintf(&b, "- Time may advance at most %d day(s) this chapter and must never move backwards.\n", c.MaxDayJump)
		}
	}

	if len(c.Forbidden) > 0 {
		writeHeader("Forbidden transitions")
		for _, f := range c.Forbidden {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	return b.String()
}

// lockedNamesFor returns the canonical names of one kind, sorted.
func (c *ConstraintSet) lockedNamesFor(kind EntityKind) []string {
	m := c.LockedNames[kind]
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for _, name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
