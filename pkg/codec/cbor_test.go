// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/utils"
)

func TestSessionRecordKeepsAttributes(t *testing.T) {
	record := models.SessionRecord{
		ID:          "s1",
		OwnerID:     "host",
		HostAddress: "10.0.0.1",
		Settings: models.SessionSettings{
			NumPublicConnections: 4,
			ShouldAdvertise:      true,
			BanList:              []string{"griefer"},
			Attributes: map[string]interface{}{
				"elo":      1200,
				"playlist": "ranked",
				"ratio":    0.5,
			},
		},
		Players: []string{"host"},
	}

	data, err := Marshal(record)
	require.NoError(t, err)

	var decoded models.SessionRecord
	require.NoError(t, Unmarshal(data, &decoded))

	assert.Equal(t, "s1", decoded.ID)
	assert.Equal(t, "host", decoded.OwnerID)
	assert.Equal(t, 4, decoded.Settings.NumPublicConnections)
	assert.Equal(t, []string{"griefer"}, decoded.Settings.BanList)
	assert.Empty(t, decoded.Players, "players are stored separately")

	elo, ok := utils.ToFloat64(decoded.Settings.Attributes["elo"])
	require.True(t, ok)
	assert.Equal(t, float64(1200), elo)
	assert.Equal(t, "ranked", decoded.Settings.GetString("playlist"))
}

func TestMarshalIsDeterministic(t *testing.T) {
	attrs := map[string]interface{}{"b": 1, "a": 2, "c": "x"}

	first, err := Marshal(attrs)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Marshal(attrs)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first, again))
	}
}

func TestUnmarshalUntypedMap(t *testing.T) {
	data, err := Marshal(map[string]interface{}{"nested": map[string]interface{}{"k": "v"}})
	require.NoError(t, err)

	var out interface{}
	require.NoError(t, Unmarshal(data, &out))

	top, ok := out.(map[string]any)
	require.True(t, ok)
	nested, ok := top["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", nested["k"])
}
