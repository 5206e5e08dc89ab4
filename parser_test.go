package asn1per

import (
	"encoding/hex"
	"testing"

	"gotest.tools/v3/assert"
)

func TestParseJSON(t *testing.T) {
	s, err := ParseJSON([]byte(`{"types": {"Small": {"type": "INTEGER", "min": 0, "max": 255}}}`))
	assert.NilError(t, err)

	data, err := s.Encode("Small", 200, false)
	assert.NilError(t, err)
	assert.Equal(t, hex.EncodeToString(data), "c8")
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse("testdata/none.json")
	assert.ErrorContains(t, err, "reading schema")
}
