package per

import (
	"fmt"
	"math/bits"
	"slices"
)

// StringKind names a known-multiplier character string type.
type StringKind uint8

const (
	NumericString StringKind = iota
	PrintableString
	IA5String
	VisibleString
	BMPString
)

// charset is the canonical character set of a StringKind.
type charset struct {
	chars    []rune // sorted, nil when too large to list
	size     int
	contains func(rune) bool
	// identity is set when the canonical value of a character is its code
	// point. Otherwise it is its index in chars.
	identity bool
}

var charsets = map[StringKind]*charset{
	NumericString:   listed(" 0123456789", false),
	PrintableString: listed("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 '()+,-./:=_?", true),
	IA5String:       spanned(0, 127),
	VisibleString:   spanned(32, 126),
	BMPString: {
		size: 0x10000 - 0x800,
		contains: func(r rune) bool {
			return r >= 0 && r <= 0xFFFF && (r < 0xD800 || r > 0xDFFF)
		},
		identity: true,
	},
}

func listed(s string, identity bool) *charset {
	chars := []rune(s)
	slices.Sort(chars)
	return &charset{
		chars:    chars,
		size:     len(chars),
		contains: func(r rune) bool { _, ok := slices.BinarySearch(chars, r); return ok },
		identity: identity,
	}
}

func spanned(lo, hi rune) *charset {
	chars := make([]rune, 0, hi-lo+1)
	for r := lo; r <= hi; r++ {
		chars = append(chars, r)
	}
	return &charset{
		chars:    chars,
		size:     len(chars),
		contains: func(r rune) bool { return r >= lo && r <= hi },
		identity: true,
	}
}

// alphabetView maps characters to the values written on the wire for one
// PER variant.
type alphabetView struct {
	bits  int
	chars []rune          // value -> character, nil for identity
	index map[rune]uint32 // character -> value, nil for identity
	set   *charset        // validity of identity mapped characters
}

func (v *alphabetView) encode(r rune) (uint32, bool) {
	if v.index != nil {
		value, ok := v.index[r]
		return value, ok
	}
	if !v.set.contains(r) {
		return 0, false
	}
	return uint32(r), true
}

func (v *alphabetView) decode(value uint32) (rune, bool) {
	if v.chars != nil {
		if value >= uint32(len(v.chars)) {
			return 0, false
		}
		return v.chars[value], true
	}
	r := rune(value)
	return r, v.set.contains(r)
}

func indexView(chars []rune, width int) alphabetView {
	index := make(map[rune]uint32, len(chars))
	for i, r := range chars {
		index[r] = uint32(i)
	}
	return alphabetView{bits: width, chars: chars, index: index}
}

// Alphabet is the effective alphabet of a known-multiplier string type: the
// canonical set of its kind, optionally narrowed by a permitted alphabet
// (FROM) constraint. It carries one mapping per PER variant.
type Alphabet struct {
	Kind      StringKind
	Permitted []rune // sorted effective characters

	aligned   alphabetView
	unaligned alphabetView
}

// NewAlphabet returns the alphabet of kind narrowed to permitted. An empty
// permitted string selects the full canonical set.
func NewAlphabet(kind StringKind, permitted string) (*Alphabet, error) {
	canonical, ok := charsets[kind]
	if !ok {
		return nil, fmt.Errorf("unknown string kind %d", kind)
	}

	var (
		chars     []rune
		size      int
		narrowed  = permitted != ""
		canonView alphabetView
	)
	if canonical.identity {
		canonView = alphabetView{set: canonical}
	} else {
		canonView = indexView(canonical.chars, 0)
	}

	if narrowed {
		chars = []rune(permitted)
		slices.Sort(chars)
		chars = slices.Compact(chars)
		for _, r := range chars {
			if !canonical.contains(r) {
				return nil, fmt.Errorf("character %q is not part of %s", r, kind)
			}
		}
		size = len(chars)
	} else {
		chars = canonical.chars
		size = canonical.size
	}

	a := &Alphabet{Kind: kind, Permitted: chars}

	// UNALIGNED: the exact number of bits for the effective alphabet.
	width := bits.Len64(uint64(size - 1))
	if narrowed {
		a.unaligned = indexView(chars, width)
	} else {
		a.unaligned = canonView
		a.unaligned.bits = width
	}

	// ALIGNED: rounded up to a power of two, keeping the canonical values
	// whenever they fit in that many bits.
	if width > 0 {
		width = 1 << bits.Len(uint(width-1))
	}
	if canonical.size < 1<<width {
		a.aligned = canonView
	} else {
		a.aligned = indexView(chars, 0)
	}
	a.aligned.bits = width
	return a, nil
}

// MustAlphabet is NewAlphabet for package level declarations.
func MustAlphabet(kind StringKind, permitted string) *Alphabet {
	a, err := NewAlphabet(kind, permitted)
	if err != nil {
		panic(err)
	}
	return a
}

// BitsPerCharacter returns the width of one character in the given variant.
func (a *Alphabet) BitsPerCharacter(aligned bool) int {
	return a.view(aligned).bits
}

func (a *Alphabet) view(aligned bool) *alphabetView {
	if aligned {
		return &a.aligned
	}
	return &a.unaligned
}

func (a *Alphabet) describe() string {
	if len(a.Permitted) > 0 && len(a.Permitted) <= 128 {
		return fmt.Sprintf("%s (%q)", a.Kind, string(a.Permitted))
	}
	return a.Kind.String()
}
