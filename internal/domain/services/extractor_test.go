package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennwright/saga/internal/domain/entities"
)

func testExtractor() *Extractor {
	return NewExtractor(entities.DefaultRules())
}

func emptyWorld() KnownWorld {
	return KnownWorld{Aliases: map[entities.EntityKind]map[string][]string{}}
}

func worldWith(kind entities.EntityKind, key string, names ...string) KnownWorld {
	return KnownWorld{Aliases: map[entities.EntityKind]map[string][]string{
		kind: {key: names},
	}}
}

func candidateOf(t *testing.T, res *ExtractionResult, kind entities.EntityKind, key string) entities.CandidateFact {
	t.Helper()
	for _, c := range res.Candidates {
		if c.Kind == kind && c.EntityKey == key {
			return c
		}
	}
	t.Fatalf("no %s candidate for %q", kind, key)
	return entities.CandidateFact{}
}

func TestExtractor_NewCharacterAndRank(t *testing.T) {
	text := "Day 3. Lin Feng stood before the gate. By nightfall he had reached Qi-Gathering, layer 1."
	res := testExtractor().Extract(text, 1, emptyWorld())

	char := candidateOf(t, res, entities.KindCharacter, "lin feng")
	assert.True(t, char.NewEntity)
	assert.Equal(t, "Lin Feng", char.Value)
	assert.InDelta(t, 0.6, char.Confidence, 1e-9)

	power := candidateOf(t, res, entities.KindPowerLevel, "lin feng")
	require.NotNil(t, power.Rank)
	assert.Equal(t, 0, power.Rank.Tier)
	assert.Equal(t, 1, power.Rank.Layer)
	assert.Equal(t, "Qi-Gathering, layer 1", power.Value)

	assert.Equal(t, 3, res.Day)
}

func TestExtractor_KnownAliasMatching(t *testing.T) {
	known := worldWith(entities.KindCharacter, "lin feng", "Lin Feng", "Brother Lin")
	text := "Brother Lin smiled. Lin Feng had waited years for this."
	res := testExtractor().Extract(text, 4, known)

	char := candidateOf(t, res, entities.KindCharacter, "lin feng")
	assert.False(t, char.NewEntity)
	assert.InDelta(t, 1.0, char.Confidence, 1e-9)
	assert.ElementsMatch(t, []string{"Brother Lin", "Lin Feng"}, char.AliasesSeen)
}

func TestExtractor_FactionAndLocationSuffixes(t *testing.T) {
	text := "The Azure Sword Sect ruled Cloudveil City from Heavenpierce Peak."
	res := testExtractor().Extract(text, 1, emptyWorld())

	faction := candidateOf(t, res, entities.KindFaction, "azure sword sect")
	assert.True(t, faction.NewEntity)

	candidateOf(t, res, entities.KindLocation, "cloudveil city")
	candidateOf(t, res, entities.KindLocation, "heavenpierce peak")

	// suffix-matched names must not leak into the character pass
	for _, c := range res.Candidates {
		if c.Kind == entities.KindCharacter {
			assert.NotContains(t, []string{"azure sword sect", "cloudveil city"}, c.EntityKey)
		}
	}
}

func TestExtractor_ConstitutionAttribution(t *testing.T) {
	text := "Su Yan breathed out. Her Frost Jade Physique glowed under the moon."
	res := testExtractor().Extract(text, 2, emptyWorld())

	c := candidateOf(t, res, entities.KindConstitution, "su yan")
	assert.Equal(t, "Frost Jade Physique", c.Value)
	assert.Empty(t, c.Tags)
}

func TestExtractor_CostMarkerTagsPowerDrop(t *testing.T) {
	known := worldWith(entities.KindCharacter, "lin feng", "Lin Feng")
	text := "Lin Feng fell back to Qi-Gathering, layer 2, his cultivation sealed at the cost of his meridians."
	res := testExtractor().Extract(text, 6, known)

	power := candidateOf(t, res, entities.KindPowerLevel, "lin feng")
	assert.True(t, power.HasTag(entities.TagCostJustified))
}

func TestExtractor_StoryTimeTakesLatestDay(t *testing.T) {
	text := "Day 12 dawned. Lin Feng trained until Day 15."
	res := testExtractor().Extract(text, 3, emptyWorld())
	assert.Equal(t, 15, res.Day)

	st := candidateOf(t, res, entities.KindStoryTime, "story")
	assert.Equal(t, 15, st.Day)
}

func TestExtractor_NoDayMention(t *testing.T) {
	res := testExtractor().Extract("Lin Feng slept.", 3, emptyWorld())
	assert.Equal(t, 0, res.Day)
	for _, c := range res.Candidates {
		assert.NotEqual(t, entities.KindStoryTime, c.Kind)
	}
}

func TestExtractor_CombatDetection(t *testing.T) {
	known := KnownWorld{Aliases: map[entities.EntityKind]map[string][]string{
		entities.KindCharacter: {
			"lin feng": {"Lin Feng"},
			"mo tian":  {"Mo Tian"},
		},
	}}
	text := "With a single palm strike, Lin Feng defeated Mo Tian before the whole sect."
	res := testExtractor().Extract(text, 7, known)

	require.Len(t, res.Combats, 1)
	assert.Equal(t, "lin feng", res.Combats[0].WinnerKey)
	assert.Equal(t, "mo tian", res.Combats[0].LoserKey)
}

// Passive voice puts the loser first: the winner is the character after
// the verb.
func TestExtractor_PassiveCombatFlipsRoles(t *testing.T) {
	known := KnownWorld{Aliases: map[entities.EntityKind]map[string][]string{
		entities.KindCharacter: {
			"lin feng": {"Lin Feng"},
			"mo tian":  {"Mo Tian"},
		},
	}}
	text := "Mo Tian was defeated by Lin Feng before the whole sect."
	res := testExtractor().Extract(text, 7, known)

	require.Len(t, res.Combats, 1)
	assert.Equal(t, "lin feng", res.Combats[0].WinnerKey)
	assert.Equal(t, "mo tian", res.Combats[0].LoserKey)
}

func TestExtractor_IdentityClaimBetweenKnownCharacters(t *testing.T) {
	known := KnownWorld{Aliases: map[entities.EntityKind]map[string][]string{
		entities.KindCharacter: {
			"lin feng": {"Lin Feng"},
			"mo tian":  {"Mo Tian"},
		},
	}}
	res := testExtractor().Extract("Mo Tian was none other than Lin Feng.", 5, known)

	require.Len(t, res.Identities, 1)
	assert.Equal(t, "mo tian", res.Identities[0].LeftKey)
	assert.Equal(t, "lin feng", res.Identities[0].RightKey)

	// a claim over a brand-new name is left to the rename pass
	res = testExtractor().Extract("The stranger was none other than Lin Feng.", 5, known)
	assert.Empty(t, res.Identities)
}

func TestExtractor_MarkerDetection(t *testing.T) {
	text := "The masked elder sneered. He had come to avenge his brother, revealed to be none other than Mo Tian."
	res := testExtractor().Extract(text, 5, emptyWorld())

	assert.True(t, res.HasMarker(MarkerVillain))
	assert.True(t, res.HasMarker(MarkerMotive))
	assert.True(t, res.HasMarker(MarkerReveal))
	assert.True(t, res.HasMarker(MarkerIdentity))
	assert.False(t, res.HasMarker(MarkerCost))
}

func TestExtractor_Deterministic(t *testing.T) {
	text := "Day 9. Lin Feng of the Azure Sword Sect reached Foundation, layer 1."
	first := testExtractor().Extract(text, 2, emptyWorld())
	second := testExtractor().Extract(text, 2, emptyWorld())

	require.Equal(t, len(first.Candidates), len(second.Candidates))
	for i := range first.Candidates {
		assert.Equal(t, first.Candidates[i].Kind, second.Candidates[i].Kind)
		assert.Equal(t, first.Candidates[i].EntityKey, second.Candidates[i].EntityKey)
		assert.Equal(t, first.Candidates[i].Value, second.Candidates[i].Value)
		assert.Equal(t, first.Candidates[i].Evidence, second.Candidates[i].Evidence)
	}
	assert.Equal(t, first.Day, second.Day)
	assert.Equal(t, first.Markers, second.Markers)
}
