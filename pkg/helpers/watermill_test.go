package helpers

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatermillAdapter_TagsAndDemotesInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWatermill(zerolog.New(&buf).Level(zerolog.DebugLevel)).
		With(watermill.LogFields{"topic": "profile.events"})

	logger.Info("subscribed", nil)
	logger.Error("publish failed", errors.New("closed"), watermill.LogFields{"attempt": 1})
	logger.Trace("dropped below level", nil)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var info, failed map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &info))
	require.NoError(t, json.Unmarshal(lines[1], &failed))

	require.Equal(t, "debug", info["level"])
	require.Equal(t, "event_bus", info["component"])
	require.Equal(t, "profile.events", info["topic"])

	require.Equal(t, "error", failed["level"])
	require.Equal(t, "closed", failed["error"])
	require.EqualValues(t, 1, failed["attempt"])
}
