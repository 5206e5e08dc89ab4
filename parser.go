// Package asn1per encodes and decodes ASN.1 values with the Packed Encoding
// Rules, both the ALIGNED and the UNALIGNED variant.
//
// The engine lives in lib/per. Type trees are built in code or loaded from
// resolved descriptors with Parse.
package asn1per

import (
	"github.com/thebagchi/asn1per/lib/schema"
)

// Parse loads the type descriptor in filename. Files ending in .toml are
// read as TOML, anything else as JSON.
func Parse(filename string) (*schema.Schema, error) {
	return schema.Load(filename)
}

// ParseJSON builds a schema from an in-memory JSON descriptor.
func ParseJSON(data []byte) (*schema.Schema, error) {
	return schema.LoadJSON(data)
}
