package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type options struct {
	Workers int
	Binary  string
	Timeout Duration
	Topics  []string
}

func TestValuesPointIntoData(t *testing.T) {
	data := options{}

	values := map[string]Value{
		"workers": NewInt(&data.Workers, 4),
		"binary":  NewExec(&data.Binary, "ffprobe"),
		"timeout": NewDuration(&data.Timeout, time.Minute),
		"topics":  NewStringList(&data.Topics, nil, ","),
	}

	require.Equal(t, options{Workers: 4, Binary: "ffprobe", Timeout: Duration(time.Minute)}, data)

	require.NoError(t, values["workers"].Set("8"))
	require.NoError(t, values["binary"].Set("/usr/bin/ffprobe"))
	require.NoError(t, values["timeout"].Set("30"))
	require.NoError(t, values["topics"].Set("probe,qp"))

	require.Equal(t, options{
		Workers: 8,
		Binary:  "/usr/bin/ffprobe",
		Timeout: Duration(30 * time.Second),
		Topics:  []string{"probe", "qp"},
	}, data)
}

func TestValuesFollowAssignments(t *testing.T) {
	source := options{}
	NewInt(&source.Workers, 1)

	target := options{}
	workers := NewInt(&target.Workers, 3)

	target = source

	require.Equal(t, "1", workers.String())
}
