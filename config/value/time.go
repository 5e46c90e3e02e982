package value

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// duration

// Duration is a time.Duration that is written to JSON as a string like "2m0s". When
// reading from JSON, a number is taken as seconds.
type Duration time.Duration

func NewDuration(p *Duration, val time.Duration) *Duration {
	*p = Duration(val)

	return p
}

// Set accepts a duration like 90s or 2m, or a number of seconds.
func (d *Duration) Set(val string) error {
	val = strings.TrimSpace(val)

	v, err := time.ParseDuration(val)
	if err != nil {
		seconds, serr := time.ParseDuration(val + "s")
		if serr != nil {
			return err
		}
		v = seconds
	}

	*d = Duration(v)
	return nil
}

func (d *Duration) String() string {
	return time.Duration(*d).String()
}

func (d *Duration) Validate() error {
	if time.Duration(*d) < 0 {
		return fmt.Errorf("the duration must not be negative")
	}

	return nil
}

func (d *Duration) IsEmpty() bool {
	return time.Duration(*d) == 0
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err == nil {
		*d = Duration(seconds * float64(time.Second))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("a duration must be a string or a number of seconds")
	}

	return d.Set(s)
}

// strftime

type Strftime string

func NewStrftime(p *string, val string) *Strftime {
	*p = val

	return (*Strftime)(p)
}

func (s *Strftime) Set(val string) error {
	*s = Strftime(val)
	return nil
}

func (s *Strftime) String() string {
	return string(*s)
}

func (s *Strftime) Validate() error {
	_, err := strftime.New(string(*s))
	return err
}

func (s *Strftime) IsEmpty() bool {
	return len(string(*s)) == 0
}
