package host

import "regexp"

// TypeTag is a compile-time-only label on a binding, used by the compiler's
// attribute checker. It has no runtime representation beyond HostObject's
// own TypeTag field, which a host sets for its own bookkeeping.
type TypeTag string

const (
	AnyTag    TypeTag = "any"
	NumberTag TypeTag = "number"
	ListTag   TypeTag = "List"
	BotTag    TypeTag = "Bot"
	GundamTag TypeTag = "Gundam"
	PlayerTag TypeTag = "Player"
	EnemyTag  TypeTag = "Enemy"
	CoreTag   TypeTag = "Core"
)

// AttrDescriptor describes one legal attribute on a TypeTag and the type
// tag of the value reading it produces, for best-effort type propagation
// through attribute chains. ElemType only applies when
// Result is ListTag: it lets `self.scan()` (List of Enemy) propagate its
// element type into a for-loop variable or an index expression.
type AttrDescriptor struct {
	Name     string
	Result   TypeTag
	ElemType TypeTag
}

// Schema is the compile-time environment schema: for each known TypeTag,
// the attributes legal on it. Unknown TypeTags (including AnyTag) have no
// entry and are never attribute-checked.
type Schema struct {
	attrs map[TypeTag][]AttrDescriptor
}

// NewSchema builds an empty Schema; use Add to register attributes.
func NewSchema() *Schema {
	return &Schema{attrs: make(map[TypeTag][]AttrDescriptor)}
}

// Add registers a legal attribute on tag, producing values of type result
// when read.
func (s *Schema) Add(tag TypeTag, name string, result TypeTag) *Schema {
	s.attrs[tag] = append(s.attrs[tag], AttrDescriptor{Name: name, Result: result})
	return s
}

// AddList registers a legal attribute on tag that produces a List of elem,
// letting element type propagate into a for-loop variable or index
// expression, e.g. `self.scan()` -> List of Enemy.
func (s *Schema) AddList(tag TypeTag, name string, elem TypeTag) *Schema {
	s.attrs[tag] = append(s.attrs[tag], AttrDescriptor{Name: name, Result: ListTag, ElemType: elem})
	return s
}

// Lookup returns the descriptor for tag.name, if tag is known to the schema
// and declares that attribute.
func (s *Schema) Lookup(tag TypeTag, name string) (AttrDescriptor, bool) {
	for _, d := range s.attrs[tag] {
		if d.Name == name {
			return d, true
		}
	}
	return AttrDescriptor{}, false
}

// Names returns every attribute name declared on tag, in declaration order,
// for use by "did you mean" suggestion logic.
func (s *Schema) Names(tag TypeTag) []string {
	descs := s.attrs[tag]
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}

// Known reports whether tag has any registered attributes at all, i.e.
// whether attribute checking should run for values of this type.
func (s *Schema) Known(tag TypeTag) bool {
	_, ok := s.attrs[tag]
	return ok
}

// DefaultSchema returns the attribute schema for the reserved unit types
// named in the host-value protocol. A Bot's and Gundam's movement/combat
// attributes are domain vocabulary owned by the host game, not this
// engine, but representative attributes (self.scan() -> List of Enemy,
// self.hacker -> Player, a missing self.forw() should suggest "forward")
// are registered here so the compiler's attribute checker and its "did you
// mean" suggestions are exercised end to end.
func DefaultSchema() *Schema {
	s := NewSchema()

	s.Add(BotTag, "forward", AnyTag)
	s.Add(BotTag, "backward", AnyTag)
	s.Add(BotTag, "turnLeft", AnyTag)
	s.Add(BotTag, "turnRight", AnyTag)
	s.Add(BotTag, "fire", AnyTag)
	s.AddList(BotTag, "scan", EnemyTag)
	s.Add(BotTag, "hacker", PlayerTag)
	s.Add(BotTag, "health", NumberTag)

	s.Add(GundamTag, "forward", AnyTag)
	s.Add(GundamTag, "backward", AnyTag)
	s.Add(GundamTag, "turnLeft", AnyTag)
	s.Add(GundamTag, "turnRight", AnyTag)
	s.Add(GundamTag, "fire", AnyTag)
	s.Add(GundamTag, "shield", AnyTag)
	s.AddList(GundamTag, "scan", EnemyTag)
	s.Add(GundamTag, "hacker", PlayerTag)
	s.Add(GundamTag, "health", NumberTag)

	s.Add(PlayerTag, "name", AnyTag)
	s.Add(PlayerTag, "score", NumberTag)

	s.AddList(EnemyTag, "position", NumberTag)
	s.Add(EnemyTag, "health", NumberTag)

	s.Add(CoreTag, "health", NumberTag)

	return s
}

var (
	botPattern    = regexp.MustCompile(`^B[1-4]$`)
	gundamPattern = regexp.MustCompile(`^G([1-9]|[12]\d|30)$`)
)

// InferTypeTag returns the TypeTag a pattern-matched unit name resolves to
// automatically (B1..B4 -> Bot, G1..G30 -> Gundam).
func InferTypeTag(name string) (TypeTag, bool) {
	switch {
	case botPattern.MatchString(name):
		return BotTag, true
	case gundamPattern.MatchString(name):
		return GundamTag, true
	default:
		return "", false
	}
}
