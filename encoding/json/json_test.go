package json

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalSorted(t *testing.T) {
	type inner struct {
		Zulu  int     `json:"zulu"`
		Alpha float64 `json:"alpha"`
	}

	type outer struct {
		Video inner  `json:"video"`
		Audio string `json:"audio"`
	}

	data, err := MarshalSorted(outer{
		Video: inner{Zulu: 1, Alpha: 62.5},
		Audio: "aac",
	}, "  ")
	require.NoError(t, err)

	require.Equal(t, `{
  "audio": "aac",
  "video": {
    "alpha": 62.5,
    "zulu": 1
  }
}
`, string(data))
}

func TestMarshalSortedIsStable(t *testing.T) {
	v := map[string]interface{}{
		"b": []interface{}{1, "x", map[string]int{"z": 1, "a": 2}},
		"a": 0.1,
	}

	first, err := MarshalSorted(v, "    ")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		data, err := MarshalSorted(v, "    ")
		require.NoError(t, err)
		require.Equal(t, first, data)
	}
}

func TestFormatError(t *testing.T) {
	input := []byte("{\n\"format\": {\n\"duration\": x}}")

	var v interface{}
	err := Unmarshal(input, &v)
	require.Error(t, err)

	err = FormatError(input, err)
	require.ErrorContains(t, err, "syntax error at line 3")
}
