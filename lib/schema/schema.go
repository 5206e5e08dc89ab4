// Package schema loads resolved type-tree descriptors into a per.Tree.
//
// A descriptor is the output of an ASN.1 compiler front end: every type is
// already resolved to its PER-visible constraints. Descriptors are JSON or
// TOML documents with a single "types" table keyed by type name.
package schema

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/thebagchi/asn1per/lib/per"
)

// Document is the top level of a descriptor file.
type Document struct {
	Types map[string]*TypeDesc `json:"types"`
}

// TypeDesc describes one type. Type is either an ASN.1 keyword or the name
// of another entry of Document.Types.
type TypeDesc struct {
	Type           string         `json:"type"`
	Min            *int64         `json:"min,omitempty"`
	Max            *int64         `json:"max,omitempty"`
	Extensible     bool           `json:"extensible,omitempty"`
	Members        []MemberDesc   `json:"members,omitempty"`
	Additions      []AdditionDesc `json:"additions,omitempty"`
	Element        *TypeDesc      `json:"element,omitempty"`
	Values         []EnumDesc     `json:"values,omitempty"`
	AdditionValues []EnumDesc     `json:"addition_values,omitempty"`
	From           string         `json:"from,omitempty"`
	NamedBits      bool           `json:"named_bits,omitempty"`
}

type MemberDesc struct {
	Name     string    `json:"name"`
	Type     *TypeDesc `json:"type"`
	Optional bool      `json:"optional,omitempty"`
	Default  any       `json:"default,omitempty"`
}

// AdditionDesc is either a single member or, when Group is set, an
// addition group.
type AdditionDesc struct {
	MemberDesc
	Group []MemberDesc `json:"group,omitempty"`
}

type EnumDesc struct {
	Name   string `json:"name"`
	Number int64  `json:"number"`
}

// Schema is a frozen type tree with its named entry points.
type Schema struct {
	Tree  *per.Tree
	types map[string]per.NodeID
}

// Lookup returns the node of a named type.
func (s *Schema) Lookup(name string) (per.NodeID, bool) {
	id, ok := s.types[name]
	return id, ok
}

// Names returns the type names in lexical order.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Encode marshals value as the named type.
func (s *Schema) Encode(name string, value per.Value, aligned bool) ([]byte, error) {
	id, ok := s.Lookup(name)
	if !ok {
		return nil, errors.Errorf("unknown type %q", name)
	}
	return per.Marshal(s.Tree, id, value, aligned)
}

// Decode unmarshals data as the named type.
func (s *Schema) Decode(name string, data []byte, aligned bool) (per.Value, error) {
	id, ok := s.Lookup(name)
	if !ok {
		return nil, errors.Errorf("unknown type %q", name)
	}
	return per.Unmarshal(s.Tree, id, data, aligned)
}

// Load reads a descriptor file. Files ending in .toml are TOML, everything
// else is JSON.
func Load(filename string) (*Schema, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading schema %s", filename)
	}

	var s *Schema
	if strings.EqualFold(filepath.Ext(filename), ".toml") {
		s, err = LoadTOML(data)
	} else {
		s, err = LoadJSON(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading schema %s", filename)
	}
	logrus.WithFields(logrus.Fields{
		"file":  filename,
		"types": len(s.types),
		"nodes": s.Tree.Len(),
	}).Debug("schema loaded")
	return s, nil
}

// LoadJSON builds a schema from a JSON descriptor.
func LoadJSON(data []byte) (*Schema, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decoding JSON descriptor")
	}
	return Build(&doc)
}

// LoadTOML builds a schema from a TOML descriptor. The document is mapped
// onto the JSON form, so both formats accept the same keys.
func LoadTOML(data []byte) (*Schema, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding TOML descriptor")
	}
	converted, err := json.Marshal(tree.ToMap())
	if err != nil {
		return nil, errors.Wrap(err, "converting TOML descriptor")
	}
	return LoadJSON(converted)
}

// Build resolves doc into a frozen tree. Named types are reserved first, so
// references (including recursive ones) resolve in any order.
func Build(doc *Document) (*Schema, error) {
	if len(doc.Types) == 0 {
		return nil, errors.New("descriptor has no types")
	}
	b := &builder{
		tree:  per.NewTree(),
		doc:   doc,
		ids:   make(map[string]per.NodeID, len(doc.Types)),
		nodes: make(nodeMap),
		state: make(map[string]int, len(doc.Types)),
	}

	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if _, ok := keywords[name]; ok {
			return nil, errors.Errorf("type name %q is a reserved keyword", name)
		}
		if doc.Types[name] == nil {
			return nil, errors.Errorf("type %q has no descriptor", name)
		}
		b.ids[name] = b.tree.Reserve()
	}
	for _, name := range names {
		if err := b.define(name); err != nil {
			return nil, err
		}
	}
	if err := b.tree.Freeze(); err != nil {
		return nil, errors.Wrap(err, "freezing type tree")
	}
	return &Schema{Tree: b.tree, types: b.ids}, nil
}

const (
	pending = iota
	building
	done
)

// nodeMap resolves the nodes defined so far while the tree is being built.
type nodeMap map[per.NodeID]per.Node

func (m nodeMap) Node(id per.NodeID) (per.Node, bool) {
	n, ok := m[id]
	return n, ok
}

type builder struct {
	tree  *per.Tree
	doc   *Document
	ids   map[string]per.NodeID
	nodes nodeMap
	state map[string]int
}

func (b *builder) define(name string) error {
	switch b.state[name] {
	case done:
		return nil
	case building:
		return errors.Errorf("type %q is defined in terms of itself", name)
	}
	b.state[name] = building

	desc := b.doc.Types[name]
	var (
		id   = b.ids[name]
		node per.Node
		err  error
	)
	if ref, ok := b.reference(desc); ok {
		// A plain alias shares the node of its target.
		if err := b.define(ref); err != nil {
			return err
		}
		node = b.nodes[b.ids[ref]]
	} else if node, err = b.node(desc); err != nil {
		return errors.Wrapf(err, "type %q", name)
	}
	node.Name = name
	if err := b.tree.Define(id, node); err != nil {
		return err
	}
	b.nodes[id] = node
	b.state[name] = done
	return nil
}

// reference reports whether desc names another type of the document.
func (b *builder) reference(desc *TypeDesc) (string, bool) {
	if _, ok := keywords[desc.Type]; ok {
		return "", false
	}
	_, ok := b.doc.Types[desc.Type]
	return desc.Type, ok
}

// typeID returns the node of a member or element type, adding inline types
// to the tree.
func (b *builder) typeID(desc *TypeDesc) (per.NodeID, error) {
	if desc == nil {
		return per.NoNode, errors.New("missing type")
	}
	if ref, ok := b.reference(desc); ok {
		return b.ids[ref], nil
	}
	node, err := b.node(desc)
	if err != nil {
		return per.NoNode, err
	}
	id := b.tree.Add(node)
	b.nodes[id] = node
	return id, nil
}

func (b *builder) node(desc *TypeDesc) (per.Node, error) {
	kw, ok := keywords[desc.Type]
	if !ok {
		return per.Node{}, errors.Errorf("unknown type %q", desc.Type)
	}

	switch kw.kind {
	case per.KindInteger:
		return per.NewInteger(valueRange(desc)), nil
	case per.KindBoolean:
		return per.NewBoolean(), nil
	case per.KindReal:
		return per.NewReal(), nil
	case per.KindNull:
		return per.NewNull(), nil
	case per.KindObjectIdentifier:
		return per.NewObjectIdentifier(), nil
	case per.KindOpenType:
		return per.NewOpenType(), nil
	case per.KindUTCTime:
		return per.NewUTCTime(), nil
	case per.KindGeneralizedTime:
		return per.NewGeneralizedTime(), nil
	case per.KindBitString:
		return per.NewBitString(sizeRange(desc), desc.NamedBits), nil
	case per.KindOctetString:
		return per.NewOctetString(sizeRange(desc)), nil
	case per.KindCharacterString:
		return per.NewCharacterString(kw.encoding), nil
	case per.KindKnownMultiplierString:
		alphabet, err := per.NewAlphabet(kw.alphabet, desc.From)
		if err != nil {
			return per.Node{}, errors.WithStack(err)
		}
		return per.NewKnownMultiplierString(alphabet, sizeRange(desc)), nil
	case per.KindEnumerated:
		return per.NewEnumerated(enumValues(desc.Values), enumValues(desc.AdditionValues), desc.Extensible), nil
	case per.KindSequenceOf, per.KindSetOf:
		element, err := b.typeID(desc.Element)
		if err != nil {
			return per.Node{}, errors.Wrap(err, "element")
		}
		if kw.kind == per.KindSetOf {
			return per.NewSetOf(element, sizeRange(desc)), nil
		}
		return per.NewSequenceOf(element, sizeRange(desc)), nil
	case per.KindChoice:
		root, err := b.members(desc.Members)
		if err != nil {
			return per.Node{}, err
		}
		var additions []per.Member
		for _, a := range desc.Additions {
			// Groups of a CHOICE only bracket alternatives.
			group := a.Group
			if len(group) == 0 {
				group = []MemberDesc{a.MemberDesc}
			}
			members, err := b.members(group)
			if err != nil {
				return per.Node{}, err
			}
			additions = append(additions, members...)
		}
		return per.NewChoice(root, additions, desc.Extensible), nil
	case per.KindSequence, per.KindSet:
		root, err := b.members(desc.Members)
		if err != nil {
			return per.Node{}, err
		}
		additions := make([]per.Addition, 0, len(desc.Additions))
		for _, a := range desc.Additions {
			if len(a.Group) > 0 {
				members, err := b.members(a.Group)
				if err != nil {
					return per.Node{}, err
				}
				additions = append(additions, per.Addition{Members: members, Group: true})
				continue
			}
			members, err := b.members([]MemberDesc{a.MemberDesc})
			if err != nil {
				return per.Node{}, err
			}
			additions = append(additions, per.Addition{Members: members})
		}
		if kw.kind == per.KindSet {
			return per.NewSet(root, additions, desc.Extensible), nil
		}
		return per.NewSequence(root, additions, desc.Extensible), nil
	}
	return per.Node{}, errors.Errorf("unhandled type %q", desc.Type)
}

func (b *builder) members(descs []MemberDesc) ([]per.Member, error) {
	members := make([]per.Member, 0, len(descs))
	for _, m := range descs {
		if m.Name == "" {
			return nil, errors.New("member without a name")
		}
		id, err := b.typeID(m.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "member %q", m.Name)
		}
		member := per.Member{Name: m.Name, Type: id, Optional: m.Optional}
		if m.Default != nil {
			if ref, ok := b.reference(m.Type); ok {
				if err := b.define(ref); err != nil {
					return nil, errors.Wrapf(err, "member %q", m.Name)
				}
			}
			if member.Default, err = convert(b.nodes, id, m.Default); err != nil {
				return nil, errors.Wrapf(err, "default of member %q", m.Name)
			}
		}
		members = append(members, member)
	}
	return members, nil
}

func enumValues(descs []EnumDesc) []per.EnumValue {
	values := make([]per.EnumValue, 0, len(descs))
	for _, v := range descs {
		values = append(values, per.EnumValue{Name: v.Name, Number: v.Number})
	}
	return values
}

func valueRange(desc *TypeDesc) per.Range {
	switch {
	case desc.Min != nil && desc.Max != nil:
		return per.NewRange(*desc.Min, *desc.Max, desc.Extensible)
	case desc.Min != nil:
		return per.LowerBounded(*desc.Min, desc.Extensible)
	case desc.Max != nil:
		return per.UpperBounded(*desc.Max, desc.Extensible)
	}
	return per.Unbounded(desc.Extensible)
}

// sizeRange is valueRange with an implied lower bound of zero.
func sizeRange(desc *TypeDesc) per.Range {
	if desc.Min == nil && desc.Max != nil {
		return per.NewRange(0, *desc.Max, desc.Extensible)
	}
	return valueRange(desc)
}

type keyword struct {
	kind     per.Kind
	alphabet per.StringKind
	encoding per.CharEncoding
}

var keywords = map[string]keyword{
	"INTEGER":           {kind: per.KindInteger},
	"BOOLEAN":           {kind: per.KindBoolean},
	"REAL":              {kind: per.KindReal},
	"NULL":              {kind: per.KindNull},
	"BIT STRING":        {kind: per.KindBitString},
	"OCTET STRING":      {kind: per.KindOctetString},
	"OBJECT IDENTIFIER": {kind: per.KindObjectIdentifier},
	"ENUMERATED":        {kind: per.KindEnumerated},
	"SEQUENCE":          {kind: per.KindSequence},
	"SET":               {kind: per.KindSet},
	"SEQUENCE OF":       {kind: per.KindSequenceOf},
	"SET OF":            {kind: per.KindSetOf},
	"CHOICE":            {kind: per.KindChoice},
	"OPEN TYPE":         {kind: per.KindOpenType},
	"ANY":               {kind: per.KindOpenType},
	"UTCTime":           {kind: per.KindUTCTime},
	"GeneralizedTime":   {kind: per.KindGeneralizedTime},
	"NumericString":     {kind: per.KindKnownMultiplierString, alphabet: per.NumericString},
	"PrintableString":   {kind: per.KindKnownMultiplierString, alphabet: per.PrintableString},
	"IA5String":         {kind: per.KindKnownMultiplierString, alphabet: per.IA5String},
	"VisibleString":     {kind: per.KindKnownMultiplierString, alphabet: per.VisibleString},
	"BMPString":         {kind: per.KindKnownMultiplierString, alphabet: per.BMPString},
	"UTF8String":        {kind: per.KindCharacterString, encoding: per.EncodingUTF8},
	"GeneralString":     {kind: per.KindCharacterString, encoding: per.EncodingLatin1},
	"GraphicString":     {kind: per.KindCharacterString, encoding: per.EncodingLatin1},
	"TeletexString":     {kind: per.KindCharacterString, encoding: per.EncodingLatin1},
	"T61String":         {kind: per.KindCharacterString, encoding: per.EncodingLatin1},
	"VideotexString":    {kind: per.KindCharacterString, encoding: per.EncodingLatin1},
	"ObjectDescriptor":  {kind: per.KindCharacterString, encoding: per.EncodingLatin1},
	"UniversalString":   {kind: per.KindCharacterString, encoding: per.EncodingUTF32},
}
