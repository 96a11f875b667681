package strutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUnderscore(t *testing.T) {
	assert.Equal(t, "PORT_FOO", ToUnderscore("portFoo"))
	assert.Equal(t, "EVENT_DEST", ToUnderscore("eventDest"))
	assert.Equal(t, "ETC_PATH", ToUnderscore("etcPath"))
	assert.Equal(t, "COMMAND", ToUnderscore("command"))
	assert.Equal(t, "BASE_PORT_2", ToUnderscore("basePort2"))
}

func TestToCamelCase(t *testing.T) {
	assert.Equal(t, "lastOperation", ToCamelCase("last_operation"))
	assert.Equal(t, "executedCmd", ToCamelCase("executed_cmd"))
	assert.Equal(t, "uid", ToCamelCase("uid"))
	assert.Equal(t, "_hidden", ToCamelCase("_hidden"))
}