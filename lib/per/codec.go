package per

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Marshal encodes value with the type rooted at root. aligned selects the
// ALIGNED variant, otherwise the UNALIGNED variant is used. The result is
// padded with zero bits to a whole number of octets.
func Marshal(tree *Tree, root NodeID, value Value, aligned bool) ([]byte, error) {
	if err := usable(tree, root); err != nil {
		return nil, err
	}
	e := NewEncoder(aligned)
	if err := e.Encode(tree, root, value); err != nil {
		return nil, err
	}
	data := e.Bytes()
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Unmarshal decodes data with the type rooted at root. Octets after the
// decoded value are ignored.
func Unmarshal(tree *Tree, root NodeID, data []byte, aligned bool) (Value, error) {
	if err := usable(tree, root); err != nil {
		return nil, err
	}
	return NewDecoder(data, aligned).Decode(tree, root)
}

func usable(tree *Tree, root NodeID) error {
	if tree == nil || !tree.Frozen() {
		return fmt.Errorf("per: type tree is not frozen")
	}
	if !tree.valid(root) {
		return fmt.Errorf("per: no type node %d", root)
	}
	return nil
}

// Encode appends the encoding of value with the type id of tree.
func (e *Encoder) Encode(tree *Tree, id NodeID, value Value) error {
	node := tree.node(id)
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.WithFields(logrus.Fields{
			"kind":   node.Kind.String(),
			"offset": e.codec.NumWritten(),
		}).Trace("per: encode")
	}

	switch node.Kind {
	case KindInteger:
		n, ok := toInt64(value)
		if !ok {
			return encodeErrorf("Expected an integer, but got %T.", value)
		}
		return e.EncodeInteger(n, node.Range)
	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return encodeErrorf("Expected a boolean, but got %T.", value)
		}
		return e.EncodeBoolean(b)
	case KindReal:
		f, ok := toFloat64(value)
		if !ok {
			return encodeErrorf("Expected a float64, but got %T.", value)
		}
		return e.EncodeReal(f)
	case KindNull:
		return e.EncodeNull()
	case KindBitString:
		b, ok := toBitString(value)
		if !ok {
			return encodeErrorf("Expected an asn1.BitString, but got %T.", value)
		}
		if node.NamedBits {
			minimum := 0
			if node.Range.HasMin {
				minimum = int(node.Range.Min)
			}
			b = trimBitString(b, minimum)
		}
		return e.EncodeBitString(b, node.Range)
	case KindOctetString:
		data, ok := value.([]byte)
		if !ok {
			return encodeErrorf("Expected a []byte, but got %T.", value)
		}
		return e.EncodeOctetString(data, node.Range)
	case KindOpenType:
		data, ok := value.([]byte)
		if !ok {
			return encodeErrorf("Expected a []byte, but got %T.", value)
		}
		return e.EncodeOpenType(data)
	case KindObjectIdentifier:
		oid, ok := toObjectIdentifier(value)
		if !ok {
			return encodeErrorf("Expected an OBJECT IDENTIFIER, but got %v.", value)
		}
		return e.EncodeObjectIdentifier(oid)
	case KindEnumerated:
		return e.encodeEnumerated(node, value)
	case KindKnownMultiplierString:
		s, ok := value.(string)
		if !ok {
			return encodeErrorf("Expected a string, but got %T.", value)
		}
		return e.EncodeKnownMultiplierString(s, node.Alphabet, node.Range)
	case KindCharacterString:
		s, ok := value.(string)
		if !ok {
			return encodeErrorf("Expected a string, but got %T.", value)
		}
		return e.EncodeCharacterString(s, node.Encoding)
	case KindUTCTime, KindGeneralizedTime:
		return e.encodeTime(node.Kind, value)
	case KindSequence, KindSet:
		return e.encodeSequence(tree, node, value)
	case KindSequenceOf, KindSetOf:
		return e.encodeSequenceOf(tree, node, value)
	case KindChoice:
		return e.encodeChoice(tree, node, value)
	}
	return encodeErrorf("unknown type kind %s", node.Kind)
}

// Decode reads one value of the type id of tree.
func (d *Decoder) Decode(tree *Tree, id NodeID) (Value, error) {
	node := tree.node(id)
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.WithFields(logrus.Fields{
			"kind":   node.Kind.String(),
			"offset": d.codec.NumRead(),
		}).Trace("per: decode")
	}

	switch node.Kind {
	case KindInteger:
		return d.DecodeInteger(node.Range)
	case KindBoolean:
		return d.DecodeBoolean()
	case KindReal:
		return d.DecodeReal()
	case KindNull:
		return nil, d.DecodeNull()
	case KindBitString:
		return d.DecodeBitString(node.Range)
	case KindOctetString:
		return d.DecodeOctetString(node.Range)
	case KindOpenType:
		return d.DecodeOpenType()
	case KindObjectIdentifier:
		return d.DecodeObjectIdentifier()
	case KindEnumerated:
		return d.decodeEnumerated(node)
	case KindKnownMultiplierString:
		return d.DecodeKnownMultiplierString(node.Alphabet, node.Range)
	case KindCharacterString:
		return d.DecodeCharacterString(node.Encoding)
	case KindUTCTime, KindGeneralizedTime:
		return d.decodeTime(node.Kind)
	case KindSequence, KindSet:
		return d.decodeSequence(tree, node)
	case KindSequenceOf, KindSetOf:
		return d.decodeSequenceOf(tree, node)
	case KindChoice:
		return d.decodeChoice(tree, node)
	}
	return nil, decodeErrorf(d.codec.NumRead(), "unknown type kind %s", node.Kind)
}

func toFloat64(v Value) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

func (e *Encoder) encodeEnumerated(node *Node, value Value) error {
	name, ok := value.(string)
	if !ok {
		return encodeErrorf("Expected an enumeration name, but got %T.", value)
	}
	for i, v := range node.Values {
		if v.Name == name {
			return e.EncodeEnumerated(uint64(i), node.Range, node.Extensible)
		}
	}
	for i, v := range node.AdditionValues {
		if v.Name == name {
			return e.EncodeEnumerated(uint64(len(node.Values)+i), node.Range, true)
		}
	}
	names := make([]string, 0, len(node.Values)+len(node.AdditionValues))
	for _, v := range node.Values {
		names = append(names, "'"+v.Name+"'")
	}
	for _, v := range node.AdditionValues {
		names = append(names, "'"+v.Name+"'")
	}
	return encodeErrorf("Expected enumeration value %s, but got '%s'.", formatOr(names), name)
}

// decodeEnumerated returns nil for an unknown extension addition.
func (d *Decoder) decodeEnumerated(node *Node) (Value, error) {
	index, err := d.DecodeEnumerated(node.Range, node.Extensible)
	if err != nil {
		return nil, err
	}
	if index < uint64(len(node.Values)) {
		return node.Values[index].Name, nil
	}
	index -= uint64(len(node.Values))
	if index < uint64(len(node.AdditionValues)) {
		return node.AdditionValues[index].Name, nil
	}
	return nil, nil
}

func (e *Encoder) encodeSequenceOf(tree *Tree, node *Node, value Value) error {
	list, ok := value.([]Value)
	if !ok {
		return encodeErrorf("Expected a []any, but got %T.", value)
	}
	var (
		r = node.Range
		n = uint64(len(list))
	)

	if r.Extensible {
		if !r.Contains(int64(n)) {
			if err := e.codec.Write(1, 1); err != nil {
				return err
			}
			if err := e.align(); err != nil {
				return err
			}
			if err := e.EncodeLengthDeterminant(n); err != nil {
				return err
			}
			return e.encodeElements(tree, node.Element, list)
		}
		if err := e.codec.Write(1, 0); err != nil {
			return err
		}
	} else if !r.Contains(int64(n)) {
		return sizeError(n, r, "elements")
	}

	switch {
	case !r.sizeBounded():
		if err := e.align(); err != nil {
			return err
		}
		if err := e.EncodeLengthDeterminant(n); err != nil {
			return err
		}
	case !r.fixed():
		if err := e.EncodeConstrainedWholeNumber(int64(n), r); err != nil {
			return err
		}
	}
	return e.encodeElements(tree, node.Element, list)
}

func (e *Encoder) encodeElements(tree *Tree, element NodeID, list []Value) error {
	for i, v := range list {
		if err := e.Encode(tree, element, v); err != nil {
			return annotate(err, "["+strconv.Itoa(i)+"]")
		}
	}
	return nil
}

func (d *Decoder) decodeSequenceOf(tree *Tree, node *Node) (Value, error) {
	var (
		r   = node.Range
		n   uint64
		err error
	)
	extended := false
	if r.Extensible {
		if extended, err = d.readBit(); err != nil {
			return nil, err
		}
	}

	switch {
	case extended, !r.sizeBounded():
		if err := d.align(); err != nil {
			return nil, err
		}
		if n, err = d.DecodeLengthDeterminant(); err != nil {
			return nil, err
		}
	case !r.fixed():
		length, err := d.DecodeConstrainedWholeNumber(r)
		if err != nil {
			return nil, err
		}
		n = uint64(length)
	default:
		n = uint64(r.Min)
	}

	list := make([]Value, 0, min(n, d.codec.Remaining()+1))
	for i := uint64(0); i < n; i++ {
		v, err := d.Decode(tree, node.Element)
		if err != nil {
			return nil, annotate(err, "["+strconv.FormatUint(i, 10)+"]")
		}
		list = append(list, v)
	}
	return list, nil
}
