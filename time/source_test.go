package time

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedSource(t *testing.T) {
	s := &FixedSource{}
	s.Set(1257894000, 0)

	require.Equal(t, time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC), s.Now())
}

func TestStdSource(t *testing.T) {
	s := &StdSource{}

	require.WithinDuration(t, time.Now(), s.Now(), time.Second)
}
