package phrase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "buy again", Normalize("  Buy AGAIN \n"))
	assert.Equal(t, "strasse", Normalize("STRASSE"))
	assert.Equal(t, "", Normalize("   "))
}

func TestMatch(t *testing.T) {
	assert.True(t, Match(" BUY ", "buy"))
	assert.True(t, Match("friend", "Friend"))
	assert.False(t, Match("buy now", "buy"))
	assert.False(t, Match("", ""))
}
