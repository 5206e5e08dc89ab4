package per

//go:generate go tool stringer -type=Kind -trimprefix=Kind
//go:generate go tool stringer -type=StringKind

import (
	"cmp"
	"fmt"
	"math/bits"
	"slices"
)

// Kind identifies the encoding procedure of a type node.
type Kind uint8

const (
	KindInteger Kind = iota
	KindBoolean
	KindReal
	KindNull
	KindBitString
	KindOctetString
	KindObjectIdentifier
	KindEnumerated
	KindKnownMultiplierString
	KindSequence
	KindSet
	KindSequenceOf
	KindSetOf
	KindChoice
	KindCharacterString
	KindOpenType
	KindUTCTime
	KindGeneralizedTime
)

// NodeID addresses a node inside a Tree.
type NodeID int

// NoNode is the NodeID of a missing node.
const NoNode NodeID = -1

// Range is an optional lower and upper bound on either an integer value or a
// size (length) with an extensibility flag.
//
// Bits is the number of bits needed to hold Max-Min, zero when the range
// holds a single value or either bound is missing. It is computed once by
// NewRange and never recomputed while encoding.
type Range struct {
	Min, Max       int64
	HasMin, HasMax bool
	Extensible     bool
	Bits           int
}

// NewRange returns the range min..max.
func NewRange(min, max int64, extensible bool) Range {
	return Range{
		Min:        min,
		Max:        max,
		HasMin:     true,
		HasMax:     true,
		Extensible: extensible,
		Bits:       bits.Len64(uint64(max) - uint64(min)),
	}
}

// FixedSize returns the non-extensible range n..n.
func FixedSize(n int64) Range {
	return NewRange(n, n, false)
}

// Unbounded returns the range MIN..MAX.
func Unbounded(extensible bool) Range {
	return Range{Extensible: extensible}
}

// LowerBounded returns the range min..MAX.
func LowerBounded(min int64, extensible bool) Range {
	return Range{Min: min, HasMin: true, Extensible: extensible}
}

// UpperBounded returns the range MIN..max.
func UpperBounded(max int64, extensible bool) Range {
	return Range{Max: max, HasMax: true, Extensible: extensible}
}

// Bounded reports whether both bounds are present.
func (r Range) Bounded() bool {
	return r.HasMin && r.HasMax
}

// Contains reports whether v satisfies every present bound.
func (r Range) Contains(v int64) bool {
	if r.HasMin && v < r.Min {
		return false
	}
	if r.HasMax && v > r.Max {
		return false
	}
	return true
}

// sizeBounded reports whether a size in this range is written without a
// length determinant.
func (r Range) sizeBounded() bool {
	return r.Bounded() && r.Max < MAX_CONSTRAINED_LENGTH
}

func (r Range) fixed() bool {
	return r.Bounded() && r.Min == r.Max
}

func (r Range) String() string {
	lower, upper := "MIN", "MAX"
	if r.HasMin {
		lower = fmt.Sprint(r.Min)
	}
	if r.HasMax {
		upper = fmt.Sprint(r.Max)
	}
	if r.Extensible {
		return lower + ".." + upper + ", ..."
	}
	return lower + ".." + upper
}

// Member is a named component of a SEQUENCE, SET or CHOICE.
type Member struct {
	Name     string
	Type     NodeID
	Optional bool
	// Default is the DEFAULT value of the member, nil when there is none.
	Default Value
}

func (m Member) hasPresenceBit() bool {
	return m.Optional || m.Default != nil
}

// Addition is one entry of an extension addition list: either a single member
// or an addition group, which is encoded as one open type.
type Addition struct {
	Members []Member
	Group   bool
}

// EnumValue is a named ENUMERATED value.
type EnumValue struct {
	Name   string
	Number int64
}

// CharEncoding selects the octet encoding of a non-known-multiplier string.
type CharEncoding uint8

const (
	EncodingUTF8   CharEncoding = iota // UTF8String
	EncodingLatin1                     // GraphicString, GeneralString, TeletexString ...
	EncodingUTF32                      // UniversalString
)

// Node is an immutable type description. Only the fields relevant to Kind
// are set.
type Node struct {
	Kind Kind
	Name string

	// Range is the value range of an INTEGER, the size range of a string or
	// list type, and the index range of a CHOICE or ENUMERATED root.
	Range Range

	Alphabet  *Alphabet    // KnownMultiplierString
	Encoding  CharEncoding // CharacterString
	NamedBits bool         // BitString

	Extensible bool       // Sequence, Set, Choice, Enumerated
	Members    []Member   // Sequence, Set, Choice root
	Additions  []Addition // Sequence, Set, Choice

	Values         []EnumValue // Enumerated root, sorted by Number
	AdditionValues []EnumValue // Enumerated additions in declaration order

	Element NodeID // SequenceOf, SetOf
}

// NewInteger returns an INTEGER node with the value range r.
func NewInteger(r Range) Node {
	return Node{Kind: KindInteger, Range: r}
}

func NewBoolean() Node { return Node{Kind: KindBoolean} }

func NewReal() Node { return Node{Kind: KindReal} }

func NewNull() Node { return Node{Kind: KindNull} }

func NewObjectIdentifier() Node { return Node{Kind: KindObjectIdentifier} }

func NewOpenType() Node { return Node{Kind: KindOpenType} }

func NewUTCTime() Node { return Node{Kind: KindUTCTime} }

func NewGeneralizedTime() Node { return Node{Kind: KindGeneralizedTime} }

// NewBitString returns a BIT STRING node. With namedBits set, trailing zero
// bits are removed before encoding.
func NewBitString(size Range, namedBits bool) Node {
	return Node{Kind: KindBitString, Range: size, NamedBits: namedBits}
}

func NewOctetString(size Range) Node {
	return Node{Kind: KindOctetString, Range: size}
}

// NewKnownMultiplierString returns a NumericString, PrintableString,
// IA5String, VisibleString or BMPString node.
func NewKnownMultiplierString(alphabet *Alphabet, size Range) Node {
	return Node{Kind: KindKnownMultiplierString, Alphabet: alphabet, Range: size}
}

func NewCharacterString(encoding CharEncoding) Node {
	return Node{Kind: KindCharacterString, Encoding: encoding}
}

// NewEnumerated returns an ENUMERATED node. The root values are sorted by
// number, additions keep their order.
func NewEnumerated(root, additions []EnumValue, extensible bool) Node {
	values := slices.Clone(root)
	slices.SortStableFunc(values, func(a, b EnumValue) int {
		return cmp.Compare(a.Number, b.Number)
	})
	return Node{
		Kind:           KindEnumerated,
		Values:         values,
		AdditionValues: slices.Clone(additions),
		Extensible:     extensible || len(additions) > 0,
		Range:          indexRange(len(values)),
	}
}

func NewSequence(root []Member, additions []Addition, extensible bool) Node {
	return Node{
		Kind:       KindSequence,
		Members:    root,
		Additions:  additions,
		Extensible: extensible || len(additions) > 0,
	}
}

// NewSet returns a SET node. SET values are encoded exactly like SEQUENCE
// values, in declaration order.
func NewSet(root []Member, additions []Addition, extensible bool) Node {
	n := NewSequence(root, additions, extensible)
	n.Kind = KindSet
	return n
}

func NewSequenceOf(element NodeID, size Range) Node {
	return Node{Kind: KindSequenceOf, Element: element, Range: size}
}

func NewSetOf(element NodeID, size Range) Node {
	return Node{Kind: KindSetOf, Element: element, Range: size}
}

// NewChoice returns a CHOICE node. Addition groups are flattened, each
// alternative of an extension is an addition of its own.
func NewChoice(root []Member, additions []Member, extensible bool) Node {
	flat := make([]Addition, 0, len(additions))
	for _, m := range additions {
		flat = append(flat, Addition{Members: []Member{m}})
	}
	return Node{
		Kind:       KindChoice,
		Members:    root,
		Additions:  flat,
		Extensible: extensible || len(additions) > 0,
		Range:      indexRange(len(root)),
	}
}

func indexRange(n int) Range {
	if n == 0 {
		return FixedSize(0)
	}
	return NewRange(0, int64(n-1), false)
}

// Tree is an arena of type nodes addressed by NodeID. Recursive types are
// built with Reserve and Define. After Freeze the tree is read-only and may
// be shared by concurrent encoders and decoders.
type Tree struct {
	nodes   []Node
	defined []bool
	frozen  bool
}

func NewTree() *Tree {
	return &Tree{}
}

// Add appends a node and returns its id. It panics on a frozen tree.
func (t *Tree) Add(n Node) NodeID {
	id := t.Reserve()
	t.nodes[id] = n
	t.defined[id] = true
	return id
}

// Reserve allocates an id whose node is supplied later with Define.
func (t *Tree) Reserve() NodeID {
	if t.frozen {
		panic("per: modification of a frozen tree")
	}
	t.nodes = append(t.nodes, Node{})
	t.defined = append(t.defined, false)
	return NodeID(len(t.nodes) - 1)
}

// Define sets the node of a reserved id.
func (t *Tree) Define(id NodeID, n Node) error {
	if t.frozen {
		return fmt.Errorf("per: define node %d: tree is frozen", id)
	}
	if id < 0 || int(id) >= len(t.nodes) {
		return fmt.Errorf("per: define node %d: no such node", id)
	}
	if t.defined[id] {
		return fmt.Errorf("per: define node %d: already defined", id)
	}
	t.nodes[id] = n
	t.defined[id] = true
	return nil
}

// Freeze checks that every reserved node is defined and every reference
// resolves, then makes the tree read-only.
func (t *Tree) Freeze() error {
	if t.frozen {
		return nil
	}
	for i := range t.nodes {
		if !t.defined[i] {
			return fmt.Errorf("per: node %d is reserved but never defined", i)
		}
		if err := t.check(&t.nodes[i]); err != nil {
			return fmt.Errorf("per: node %d (%s): %w", i, t.nodes[i].Kind, err)
		}
	}
	t.frozen = true
	return nil
}

// Frozen reports whether Freeze succeeded.
func (t *Tree) Frozen() bool {
	return t.frozen
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) (Node, bool) {
	if id < 0 || int(id) >= len(t.nodes) {
		return Node{}, false
	}
	return t.nodes[id], true
}

func (t *Tree) node(id NodeID) *Node {
	return &t.nodes[id]
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

func (t *Tree) check(n *Node) error {
	members := func(list []Member) error {
		for _, m := range list {
			if !t.valid(m.Type) {
				return fmt.Errorf("member %q references missing node %d", m.Name, m.Type)
			}
		}
		return nil
	}
	switch n.Kind {
	case KindSequence, KindSet, KindChoice:
		if err := members(n.Members); err != nil {
			return err
		}
		for _, a := range n.Additions {
			if len(a.Members) == 0 {
				return fmt.Errorf("empty extension addition")
			}
			if !a.Group && len(a.Members) != 1 {
				return fmt.Errorf("extension addition with %d members is not a group", len(a.Members))
			}
			if err := members(a.Members); err != nil {
				return err
			}
		}
		if n.Kind == KindChoice && len(n.Members) == 0 {
			return fmt.Errorf("choice without root alternatives")
		}
	case KindSequenceOf, KindSetOf:
		if !t.valid(n.Element) {
			return fmt.Errorf("element references missing node %d", n.Element)
		}
	case KindKnownMultiplierString:
		if n.Alphabet == nil {
			return fmt.Errorf("string without alphabet")
		}
	case KindEnumerated:
		if len(n.Values) == 0 {
			return fmt.Errorf("enumeration without root values")
		}
	}
	switch n.Kind {
	case KindBitString, KindOctetString, KindKnownMultiplierString, KindSequenceOf, KindSetOf:
		if n.Range.HasMin && n.Range.Min < 0 {
			return fmt.Errorf("negative size bound %d", n.Range.Min)
		}
		if n.Range.Bounded() && n.Range.Min > n.Range.Max {
			return fmt.Errorf("empty size range %s", n.Range)
		}
	case KindInteger:
		if n.Range.Bounded() && n.Range.Min > n.Range.Max {
			return fmt.Errorf("empty value range %s", n.Range)
		}
	}
	return nil
}
