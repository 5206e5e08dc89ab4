package per

// 23 Encoding the choice type

func (e *Encoder) encodeChoice(tree *Tree, node *Node, value Value) error {
	var choice Choice
	switch c := value.(type) {
	case Choice:
		choice = c
	case *Choice:
		if c == nil {
			return encodeErrorf("Expected a Choice, but got nil.")
		}
		choice = *c
	default:
		return encodeErrorf("Expected a Choice, but got %T.", value)
	}

	for i, m := range node.Members {
		if m.Name != choice.Name {
			continue
		}
		if node.Extensible {
			if err := e.codec.WriteBit(false); err != nil {
				return err
			}
		}
		if err := e.EncodeConstrainedWholeNumber(int64(i), node.Range); err != nil {
			return err
		}
		return annotate(e.Encode(tree, m.Type, choice.Value), m.Name)
	}

	for i, a := range node.Additions {
		m := a.Members[0]
		if m.Name != choice.Name {
			continue
		}
		sub := NewEncoder(e.aligned)
		if err := sub.Encode(tree, m.Type, choice.Value); err != nil {
			return annotate(err, m.Name)
		}
		if err := e.codec.WriteBit(true); err != nil {
			return err
		}
		if err := e.EncodeNormallySmallNonNegativeWholeNumber(uint64(i)); err != nil {
			return err
		}
		if err := e.align(); err != nil {
			return err
		}
		return e.appendOpenType(sub)
	}

	return encodeErrorf("Expected choice %s, but got '%s'.", choiceNames(node), choice.Name)
}

func choiceNames(node *Node) string {
	names := make([]string, 0, len(node.Members)+len(node.Additions))
	for _, m := range node.Members {
		names = append(names, "'"+m.Name+"'")
	}
	for _, a := range node.Additions {
		names = append(names, "'"+a.Members[0].Name+"'")
	}
	return formatOr(names)
}

// decodeChoice returns the zero Choice for an unknown extension alternative.
func (d *Decoder) decodeChoice(tree *Tree, node *Node) (Value, error) {
	if node.Extensible {
		extended, err := d.readBit()
		if err != nil {
			return nil, err
		}
		if extended {
			return d.decodeChoiceAddition(tree, node)
		}
	}

	index, err := d.DecodeConstrainedWholeNumber(node.Range)
	if err != nil {
		return nil, err
	}
	m := node.Members[index]
	v, err := d.Decode(tree, m.Type)
	if err != nil {
		return nil, annotate(err, m.Name)
	}
	return Choice{Name: m.Name, Value: v}, nil
}

func (d *Decoder) decodeChoiceAddition(tree *Tree, node *Node) (Value, error) {
	index, err := d.DecodeNormallySmallNonNegativeWholeNumber()
	if err != nil {
		return nil, err
	}
	if err := d.align(); err != nil {
		return nil, err
	}

	if index >= uint64(len(node.Additions)) {
		return Choice{}, d.skipOpenType()
	}

	var (
		m      = node.Additions[index].Members[0]
		choice = Choice{Name: m.Name}
	)
	err = d.openType(func() error {
		v, err := d.Decode(tree, m.Type)
		if err != nil {
			return annotate(err, m.Name)
		}
		choice.Value = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return choice, nil
}
