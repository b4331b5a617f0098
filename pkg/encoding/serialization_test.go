package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOf(t *testing.T) {
	cases := map[string]Format{
		"a/b/config.json": FormatJSON,
		"level.MSGPACK":   FormatMsgPack,
		"x.mp":            FormatMsgPack,
		"engine.yml":      FormatYAML,
		"engine.yaml":     FormatYAML,
	}
	for path, want := range cases {
		got, err := FormatOf(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatOf("noext")
	assert.Error(t, err)
	_, err = FormatOf("file.txt")
	assert.Error(t, err)
	assert.Equal(t, "msgpack", FormatMsgPack.String())
}
