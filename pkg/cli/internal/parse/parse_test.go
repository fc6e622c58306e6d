package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyValue(t *testing.T) {
	tests := []struct {
		in         string
		delims     []rune
		key, value string
		ok         bool
	}{
		{"a:b", nil, "a", "b", true},
		{"a=b:c", []rune{'='}, "a", "b:c", true},
		{"a=b:c", []rune{':', '='}, "a", "b:c", true},
		{"Authorization:Bearer x:y", nil, "Authorization", "Bearer x:y", true},
		{"novalue", nil, "", "", false},
	}
	for _, tt := range tests {
		key, value, ok := KeyValue(tt.in, tt.delims...)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.key, key, tt.in)
		assert.Equal(t, tt.value, value, tt.in)
	}
}

func TestHeader(t *testing.T) {
	h := Header([]string{"X-Token: abc", "x-token:def", "bogus", ":empty"})
	assert.Equal(t, []string{"abc", "def"}, h.Values("X-Token"))
	assert.Len(t, h, 1)
}

func TestSplitTrim(t *testing.T) {
	assert.Nil(t, SplitTrim("", ","))
	assert.Equal(t, []string{"a", "b"}, SplitTrim(" a , ,b,", ","))
}
