package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTopic(t *testing.T) {
	flightID, part, series, ok := parseTopic("550e8400-e29b-41d4-a716-446655440000/m/2/7")
	assert.True(t, ok)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", flightID)
	assert.Equal(t, 2, part)
	assert.Equal(t, 7, series)
}

func TestParseTopicRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"flight-1",
		"flight-1/m/0",
		"flight-1/m/0/1/extra",
		"flight-1/x/0/1",
		"/m/0/1",
		"flight-1/m/a/1",
		"flight-1/m/0/b",
		"flight-1/m/-1/0",
		"flight-1/m/0/-2",
		"$SYS/broker/uptime",
	}
	for _, topic := range cases {
		_, _, _, ok := parseTopic(topic)
		assert.False(t, ok, topic)
	}
}
