package gen

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestClientTempIDShape(t *testing.T) {
	re := regexp.MustCompile(`^temp_\d{13}_[0-9a-f]{9}$`)

	seen := make(map[string]struct{})
	for range 500 {
		id := ClientTempID()
		assert.Regexp(t, re, id)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate temp id %s", id)
		seen[id] = struct{}{}
	}
}

func TestAccessCodeShape(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]{3}_[A-Z]{3}_[A-Z]{2}_[1-9]\d{3}$`)
	for range 100 {
		code := AccessCode()
		assert.Regexp(t, re, code)
		assert.True(t, ValidAccessCode(code))
	}

	assert.Regexp(t, `^TRIP_[A-Z0-9]{9}$`, FallbackAccessCode())
}

func TestValidAccessCode(t *testing.T) {
	assert.True(t, ValidAccessCode("QA-2025"))
	assert.False(t, ValidAccessCode("a"))
	assert.False(t, ValidAccessCode("lowercase_code"))
	assert.False(t, ValidAccessCode("THIS_CODE_IS_MUCH_TOO_LONG"))
}

func TestUUIDGenerator(t *testing.T) {
	var nilGen UUIDGenerator
	assert.Equal(t, uuid.Nil, nilGen.Next())

	g := UUID()
	assert.NotEqual(t, g.Next(), g.Next())
	assert.Len(t, g.String(), 36)
}
