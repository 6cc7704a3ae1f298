// Package entities contains core domain data structures.
package entities

// EntityKind categorizes a tracked narrative entity. The enumeration is
// fixed: committing a record with an unknown kind is a programming error,
// not bad chapter data.
type EntityKind string

const (
	KindCharacter    EntityKind = "character"
	KindFaction      EntityKind = "faction"
	KindLocation     EntityKind = "location"
	KindPowerLevel   EntityKind = "power_level"
	KindConstitution EntityKind = "constitution"
	KindItem         EntityKind = "item"
	KindStoryTime    EntityKind = "story_time"
)

// Kinds lists every valid entity kind.
var Kinds = []EntityKind{
	KindCharacter,
	KindFaction,
	KindLocation,
	KindPowerLevel,
	KindConstitution,
	KindItem,
	KindStoryTime,
}

// NamedKinds are the kinds whose values are literal surface names and
// therefore subject to alias tracking and fuzzy-name detection.
var NamedKinds = []EntityKind{
	KindCharacter,
	KindFaction,
	KindLocation,
	KindItem,
}

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	switch k {
	case KindCharacter, KindFaction, KindLocation, KindPowerLevel,
		KindConstitution, KindItem, KindStoryTime:
		return true
	}
	return false
}

// Named reports whether k carries a literal surface name as its value.
func (k EntityKind) Named() bool {
	switch k {
	case KindCharacter, KindFaction, KindLocation, KindItem:
		return true
	}
	return false
}
