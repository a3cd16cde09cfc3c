package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settingsDoc struct {
	Table   string            `json:"table"`
	Session string            `json:"session"`
	Mapping map[string]string `json:"mapping"`
	Stops   []float64         `json:"stops"`
}

func TestRoundTrip(t *testing.T) {
	doc := settingsDoc{
		Table:   "plot-data",
		Session: "wf42-step3",
		Mapping: map[string]string{"x": ".x", "y": ".y"},
		Stops:   []float64{0, 50, 100},
	}

	tests := []struct {
		name  string
		codec Codec
	}{
		{name: "json", codec: JSON{}},
		{name: "go-json", codec: GoJSON{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.codec.Marshal(doc)
			require.NoError(t, err)

			var got settingsDoc
			require.NoError(t, tt.codec.Unmarshal(data, &got))
			assert.Equal(t, doc, got)
		})
	}
}

func TestCrossCodecCompatibility(t *testing.T) {
	doc := settingsDoc{Table: "t", Session: "s"}

	data := MustMarshal(JSON{}, doc)

	var got settingsDoc
	require.NoError(t, GoJSON{}.Unmarshal(data, &got))
	assert.Equal(t, doc, got)
}

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestDefaultIsGoJSON(t *testing.T) {
	assert.Equal(t, "go-json", Default.Name())
}
