package schema

import (
	"bytes"
	"encoding/asn1"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/thebagchi/asn1per/lib/per"
)

// Nodes resolves node ids. *per.Tree implements it.
type Nodes interface {
	Node(id per.NodeID) (per.Node, bool)
}

// ParseValue decodes a JSON document into the value of the named type.
func (s *Schema) ParseValue(name string, data []byte) (per.Value, error) {
	id, ok := s.Lookup(name)
	if !ok {
		return nil, errors.Errorf("unknown type %q", name)
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding JSON value")
	}
	return FromJSON(s.Tree, id, raw)
}

// FormatValue renders value of the named type as indented JSON.
func (s *Schema) FormatValue(name string, value per.Value) ([]byte, error) {
	id, ok := s.Lookup(name)
	if !ok {
		return nil, errors.Errorf("unknown type %q", name)
	}
	doc, err := ToJSON(s.Tree, id, value)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FromJSON converts a decoded JSON value (numbers as json.Number or
// float64) into the per.Value of the type id.
func FromJSON(nodes Nodes, id per.NodeID, raw any) (per.Value, error) {
	return convert(nodes, id, raw)
}

func convert(nodes Nodes, id per.NodeID, raw any) (per.Value, error) {
	node, ok := nodes.Node(id)
	if !ok {
		return nil, errors.Errorf("type node %d is not defined", id)
	}

	switch node.Kind {
	case per.KindInteger:
		return toInteger(raw)
	case per.KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, mismatch("a boolean", raw)
		}
		return b, nil
	case per.KindReal:
		return toReal(raw)
	case per.KindNull:
		if raw != nil {
			return nil, mismatch("null", raw)
		}
		return nil, nil
	case per.KindBitString:
		return toBitString(raw)
	case per.KindOctetString, per.KindOpenType:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch("a hex string", raw)
		}
		data, err := hex.DecodeString(s)
		if err != nil {
			return nil, errors.Wrapf(err, "bad hex string %q", s)
		}
		return data, nil
	case per.KindObjectIdentifier:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch("a dotted OBJECT IDENTIFIER", raw)
		}
		oid, err := per.ParseObjectIdentifier(s)
		if err != nil {
			return nil, errors.Wrapf(err, "bad OBJECT IDENTIFIER %q", s)
		}
		return oid, nil
	case per.KindEnumerated, per.KindKnownMultiplierString, per.KindCharacterString:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch("a string", raw)
		}
		return s, nil
	case per.KindUTCTime, per.KindGeneralizedTime:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch("an RFC 3339 time", raw)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, errors.Wrapf(err, "bad time %q", s)
		}
		return t, nil
	case per.KindSequence, per.KindSet:
		return toSequence(nodes, node, raw)
	case per.KindSequenceOf, per.KindSetOf:
		list, ok := raw.([]any)
		if !ok {
			return nil, mismatch("an array", raw)
		}
		values := make([]per.Value, len(list))
		for i, item := range list {
			v, err := convert(nodes, node.Element, item)
			if err != nil {
				return nil, errors.Wrapf(err, "[%d]", i)
			}
			values[i] = v
		}
		return values, nil
	case per.KindChoice:
		return toChoice(nodes, node, raw)
	}
	return nil, errors.Errorf("unsupported type kind %s", node.Kind)
}

func mismatch(expected string, raw any) error {
	return errors.Errorf("expected %s, but got %T", expected, raw)
}

func toInteger(raw any) (per.Value, error) {
	switch n := raw.(type) {
	case json.Number:
		v, err := n.Int64()
		if err != nil {
			return nil, errors.Wrapf(err, "bad integer %s", n)
		}
		return v, nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return nil, errors.Errorf("expected an integer, but got %v", n)
		}
		return int64(n), nil
	}
	return nil, mismatch("an integer", raw)
}

var specialReals = map[string]float64{
	"inf":  math.Inf(1),
	"-inf": math.Inf(-1),
	"nan":  math.NaN(),
	"-0":   math.Copysign(0, -1),
}

func toReal(raw any) (per.Value, error) {
	switch n := raw.(type) {
	case json.Number:
		v, err := n.Float64()
		if err != nil {
			return nil, errors.Wrapf(err, "bad real %s", n)
		}
		return v, nil
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case string:
		if v, ok := specialReals[strings.ToLower(n)]; ok {
			return v, nil
		}
		v, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad real %q", n)
		}
		return v, nil
	}
	return nil, mismatch("a number", raw)
}

// toBitString accepts {"hex": "a0", "length": 3} or a string of 0 and 1.
func toBitString(raw any) (per.Value, error) {
	switch v := raw.(type) {
	case string:
		b := asn1.BitString{Bytes: make([]byte, (len(v)+7)/8), BitLength: len(v)}
		for i, c := range v {
			switch c {
			case '1':
				b.Bytes[i/8] |= 0x80 >> (i % 8)
			case '0':
			default:
				return nil, errors.Errorf("bad bit %q in %q", c, v)
			}
		}
		return b, nil
	case map[string]any:
		s, ok := v["hex"].(string)
		if !ok {
			return nil, errors.New(`bit string without "hex"`)
		}
		data, err := hex.DecodeString(s)
		if err != nil {
			return nil, errors.Wrapf(err, "bad hex string %q", s)
		}
		length := int64(len(data) * 8)
		if l, ok := v["length"]; ok {
			n, err := toInteger(l)
			if err != nil {
				return nil, errors.Wrap(err, "bit string length")
			}
			length = n.(int64)
		}
		if length < 0 || length > int64(len(data)*8) {
			return nil, errors.Errorf("bit string length %d does not fit %d octets", length, len(data))
		}
		return asn1.BitString{Bytes: data, BitLength: int(length)}, nil
	}
	return nil, mismatch("a bit string", raw)
}

func toSequence(nodes Nodes, node per.Node, raw any) (per.Value, error) {
	object, ok := raw.(map[string]any)
	if !ok {
		return nil, mismatch("an object", raw)
	}
	members := make(map[string]per.NodeID, len(node.Members))
	for _, m := range node.Members {
		members[m.Name] = m.Type
	}
	for _, a := range node.Additions {
		for _, m := range a.Members {
			members[m.Name] = m.Type
		}
	}

	data := make(map[string]per.Value, len(object))
	for name, item := range object {
		id, ok := members[name]
		if !ok {
			return nil, errors.Errorf("unknown member %q", name)
		}
		v, err := convert(nodes, id, item)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", name)
		}
		data[name] = v
	}
	return data, nil
}

func toChoice(nodes Nodes, node per.Node, raw any) (per.Value, error) {
	object, ok := raw.(map[string]any)
	if !ok || len(object) != 1 {
		return nil, errors.Errorf("expected an object with exactly one alternative, but got %v", raw)
	}
	for name, item := range object {
		for _, m := range alternatives(node) {
			if m.Name != name {
				continue
			}
			v, err := convert(nodes, m.Type, item)
			if err != nil {
				return nil, errors.Wrapf(err, "%s", name)
			}
			return per.Choice{Name: name, Value: v}, nil
		}
		return nil, errors.Errorf("unknown alternative %q", name)
	}
	return nil, nil
}

func alternatives(node per.Node) []per.Member {
	list := append([]per.Member(nil), node.Members...)
	for _, a := range node.Additions {
		list = append(list, a.Members...)
	}
	return list
}

// ToJSON converts a decoded value of the type id into plain JSON data, the
// inverse of FromJSON.
func ToJSON(nodes Nodes, id per.NodeID, value per.Value) (any, error) {
	node, ok := nodes.Node(id)
	if !ok {
		return nil, errors.Errorf("type node %d is not defined", id)
	}

	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		switch {
		case math.IsInf(v, 1):
			return "inf", nil
		case math.IsInf(v, -1):
			return "-inf", nil
		case math.IsNaN(v):
			return "nan", nil
		case v == 0 && math.Signbit(v):
			return "-0", nil
		}
		return v, nil
	case asn1.BitString:
		return map[string]any{"hex": hex.EncodeToString(v.Bytes), "length": v.BitLength}, nil
	case []byte:
		return hex.EncodeToString(v), nil
	case asn1.ObjectIdentifier:
		return v.String(), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case map[string]per.Value:
		types := make(map[string]per.NodeID)
		for _, m := range alternatives(node) {
			types[m.Name] = m.Type
		}
		object := make(map[string]any, len(v))
		for name, item := range v {
			id, ok := types[name]
			if !ok {
				return nil, errors.Errorf("unknown member %q", name)
			}
			out, err := ToJSON(nodes, id, item)
			if err != nil {
				return nil, errors.Wrapf(err, "%s", name)
			}
			object[name] = out
		}
		return object, nil
	case []per.Value:
		list := make([]any, len(v))
		for i, item := range v {
			out, err := ToJSON(nodes, node.Element, item)
			if err != nil {
				return nil, errors.Wrapf(err, "[%d]", i)
			}
			list[i] = out
		}
		return list, nil
	case per.Choice:
		if v.Name == "" {
			return nil, nil
		}
		for _, m := range alternatives(node) {
			if m.Name == v.Name {
				out, err := ToJSON(nodes, m.Type, v.Value)
				if err != nil {
					return nil, errors.Wrapf(err, "%s", v.Name)
				}
				return map[string]any{v.Name: out}, nil
			}
		}
		return nil, errors.Errorf("unknown alternative %q", v.Name)
	}
	return value, nil
}
