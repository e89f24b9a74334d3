package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"asset\": \"BTC\"\n}", Pretty(` {"asset":"BTC"} `))
	assert.Equal(t, "not json", Pretty("  not json "))
	assert.Equal(t, "", Pretty("   "))
}
