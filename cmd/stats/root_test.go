package stats

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintPairs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printPairs(&buf, []protocol.StatPair{
		{Key: "pid", Value: "42"},
		{Key: "curr_connections", Value: "1"},
	}))

	assert.Equal(t, "pid               42\ncurr_connections  1\n", buf.String())
}
