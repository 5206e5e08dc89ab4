package per

import (
	"slices"
	"strings"
)

// 19 Encoding the sequence type
//
// An extensible SEQUENCE starts with the extension bit, followed by the
// presence bitmap of the OPTIONAL and DEFAULT root members and the root
// values. When at least one extension addition is present the bit is set and
// the additions follow: a normally small length with the number of declared
// additions, their presence bitmap, and one open type per present addition.
// An addition group is encoded as a root-only SEQUENCE of its members.

func (e *Encoder) encodeSequence(tree *Tree, node *Node, value Value) error {
	data, ok := value.(map[string]Value)
	if !ok {
		return encodeErrorf("Expected a map for %s, but got %T.", node.Kind, value)
	}

	extension := e.codec.NumWritten()
	if node.Extensible {
		if err := e.codec.WriteBit(false); err != nil {
			return err
		}
	}

	if err := e.encodeMembers(tree, node.Members, data); err != nil {
		return err
	}

	if !node.Extensible || len(node.Additions) == 0 {
		return nil
	}
	present, err := e.encodeAdditions(tree, node.Additions, data)
	if err != nil || !present {
		return err
	}
	return e.codec.SetBit(extension)
}

func memberPresent(tree *Tree, m Member, data map[string]Value) (Value, bool) {
	v, ok := data[m.Name]
	if !ok {
		return nil, false
	}
	if m.Default != nil && isDefault(v, m.Default, tree.node(m.Type).NamedBits) {
		return v, false
	}
	return v, true
}

func (e *Encoder) encodeMembers(tree *Tree, members []Member, data map[string]Value) error {
	for _, m := range members {
		if !m.hasPresenceBit() {
			continue
		}
		_, present := memberPresent(tree, m, data)
		if err := e.codec.WriteBit(present); err != nil {
			return err
		}
	}

	for _, m := range members {
		v, present := memberPresent(tree, m, data)
		if !present {
			if _, ok := data[m.Name]; !ok && !m.hasPresenceBit() {
				return encodeErrorf("Sequence member '%s' not found in %s.", m.Name, memberNames(data))
			}
			continue
		}
		if err := e.Encode(tree, m.Type, v); err != nil {
			return annotate(err, m.Name)
		}
	}
	return nil
}

func (e *Encoder) encodeAdditions(tree *Tree, additions []Addition, data map[string]Value) (bool, error) {
	var (
		bitmap = make([]bool, len(additions))
		subs   []*Encoder
	)
	for i, a := range additions {
		sub := NewEncoder(e.aligned)
		if a.Group {
			if !anyPresent(a.Members, data) {
				continue
			}
			if err := sub.encodeMembers(tree, a.Members, data); err != nil {
				return false, err
			}
		} else {
			m := a.Members[0]
			v, ok := data[m.Name]
			if !ok {
				continue
			}
			if err := sub.Encode(tree, m.Type, v); err != nil {
				return false, annotate(err, m.Name)
			}
		}
		bitmap[i] = true
		subs = append(subs, sub)
	}
	if len(subs) == 0 {
		return false, nil
	}

	if err := e.EncodeNormallySmallLength(uint64(len(additions))); err != nil {
		return false, err
	}
	for _, bit := range bitmap {
		if err := e.codec.WriteBit(bit); err != nil {
			return false, err
		}
	}
	if err := e.align(); err != nil {
		return false, err
	}
	for _, sub := range subs {
		if err := e.appendOpenType(sub); err != nil {
			return false, err
		}
	}
	return true, nil
}

func anyPresent(members []Member, data map[string]Value) bool {
	for _, m := range members {
		if _, ok := data[m.Name]; ok {
			return true
		}
	}
	return false
}

func memberNames(data map[string]Value) string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, "'"+name+"'")
	}
	if len(names) == 0 {
		return "{}"
	}
	slices.Sort(names)
	return "{" + strings.Join(names, ", ") + "}"
}

func (d *Decoder) decodeSequence(tree *Tree, node *Node) (Value, error) {
	extended := false
	if node.Extensible {
		var err error
		if extended, err = d.readBit(); err != nil {
			return nil, err
		}
	}

	data := make(map[string]Value, len(node.Members))
	if err := d.decodeMembers(tree, node.Members, data); err != nil {
		return nil, err
	}
	if extended {
		if err := d.decodeAdditions(tree, node.Additions, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (d *Decoder) decodeMembers(tree *Tree, members []Member, data map[string]Value) error {
	var presence []bool
	for _, m := range members {
		if !m.hasPresenceBit() {
			continue
		}
		bit, err := d.readBit()
		if err != nil {
			return err
		}
		presence = append(presence, bit)
	}

	for _, m := range members {
		if m.hasPresenceBit() {
			present := presence[0]
			presence = presence[1:]
			if !present {
				if m.Default != nil {
					data[m.Name] = m.Default
				}
				continue
			}
		}
		v, err := d.Decode(tree, m.Type)
		if err != nil {
			return annotate(err, m.Name)
		}
		data[m.Name] = v
	}
	return nil
}

// decodeAdditions decodes the known additions and skips unknown ones by
// their open type length.
func (d *Decoder) decodeAdditions(tree *Tree, additions []Addition, data map[string]Value) error {
	count, err := d.DecodeNormallySmallLength()
	if err != nil {
		return err
	}
	presence := make([]bool, count)
	for i := range presence {
		if presence[i], err = d.readBit(); err != nil {
			return err
		}
	}
	if err := d.align(); err != nil {
		return err
	}

	for i, present := range presence {
		if !present {
			continue
		}
		if i >= len(additions) {
			if err := d.skipOpenType(); err != nil {
				return err
			}
			continue
		}
		a := additions[i]
		err := d.openType(func() error {
			if a.Group {
				return d.decodeMembers(tree, a.Members, data)
			}
			m := a.Members[0]
			v, err := d.Decode(tree, m.Type)
			if err != nil {
				return annotate(err, m.Name)
			}
			data[m.Name] = v
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// openType runs decode on the contents of an open type and leaves the
// decoder at the end of the contents, whatever decode consumed.
func (d *Decoder) openType(decode func() error) error {
	length, err := d.DecodeLengthDeterminant()
	if err != nil {
		return err
	}
	var (
		start = d.codec.NumRead()
		size  = length * 8
	)
	if size > d.codec.Remaining() {
		return &DecodeError{
			Offset:  int64(start),
			Message: "out of data",
			Err:     &OutOfDataError{Offset: start},
		}
	}
	if err := decode(); err != nil {
		return err
	}
	consumed := d.codec.NumRead() - start
	if consumed > size {
		return decodeErrorf(start, "Expected an open type of %d bits, but %d were consumed.", size, consumed)
	}
	return d.skip(size - consumed)
}

func (d *Decoder) skipOpenType() error {
	return d.openType(func() error { return nil })
}
