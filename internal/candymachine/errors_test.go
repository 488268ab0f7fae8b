package candymachine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultErrorCatalog(t *testing.T) {
	cat := DefaultErrorCatalog()

	tests := []struct {
		code      uint32
		condition Condition
	}{
		{309, ConditionInsufficientFunds},
		{311, ConditionSoldOut},
		{312, ConditionNotLive},
	}
	for _, tt := range tests {
		e, ok := cat.Lookup(tt.code)
		require.True(t, ok, "code %d", tt.code)
		assert.Equal(t, tt.condition, e.Condition)
	}
	assert.Equal(t, []uint32{309, 311, 312}, cat.Codes())
	assert.Equal(t, "SOLD OUT!", cat.Describe(311))
	assert.Equal(t, "program error 0x1", cat.Describe(1))
}

func TestLoadErrorCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: candy-machine-v2
errors:
  0x1770: {message: "Incorrect owner", condition: ""}
  6005:
    message: "Candy machine is empty"
    condition: sold_out
`), 0o644))

	cat, err := LoadErrorCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "candy-machine-v2", cat.Version)

	e, ok := cat.Lookup(6000)
	require.True(t, ok)
	assert.Equal(t, "Incorrect owner", e.Message)
	assert.Equal(t, ConditionNone, e.Condition)

	e, ok = cat.Lookup(6005)
	require.True(t, ok)
	assert.Equal(t, ConditionSoldOut, e.Condition)

	_, ok = cat.Lookup(311)
	assert.False(t, ok)
}

func TestParseErrorCatalogErrors(t *testing.T) {
	_, err := ParseErrorCatalog([]byte("errors:\n  zz: {message: x}\n"))
	assert.Error(t, err)

	_, err = ParseErrorCatalog([]byte("errors:\n  1: {message: x, condition: exploded}\n"))
	assert.Error(t, err)

	_, err = ParseErrorCatalog([]byte("errors: [1, 2]"))
	assert.Error(t, err)

	var nilCat *ErrorCatalog
	_, ok := nilCat.Lookup(1)
	assert.False(t, ok)
}
