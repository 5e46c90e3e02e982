package value

import (
	"fmt"
	"strconv"
	"strings"
)

// String is a free-form string.
type String string

func NewString(p *string, val string) *String {
	*p = val

	return (*String)(p)
}

func (s *String) Set(val string) error {
	*s = String(val)
	return nil
}

func (s *String) String() string  { return string(*s) }
func (s *String) Validate() error { return nil }
func (s *String) IsEmpty() bool   { return *s == "" }

// StringList is a list of strings. Set splits its input at the separator and
// drops blank elements.
type StringList struct {
	p   *[]string
	sep string
}

func NewStringList(p *[]string, val []string, separator string) *StringList {
	*p = val

	return &StringList{
		p:   p,
		sep: separator,
	}
}

func (s *StringList) Set(val string) error {
	list := []string{}

	for _, elm := range strings.Split(val, s.sep) {
		if elm = strings.TrimSpace(elm); elm != "" {
			list = append(list, elm)
		}
	}

	*s.p = list

	return nil
}

func (s *StringList) String() string {
	if s.IsEmpty() {
		return "(empty)"
	}

	return strings.Join(*s.p, s.sep)
}

func (s *StringList) Validate() error { return nil }
func (s *StringList) IsEmpty() bool   { return len(*s.p) == 0 }

// Bool accepts everything strconv.ParseBool does, plus yes/no and on/off.
type Bool bool

var boolWords = map[string]bool{
	"yes": true,
	"on":  true,
	"no":  false,
	"off": false,
}

func NewBool(p *bool, val bool) *Bool {
	*p = val

	return (*Bool)(p)
}

func (b *Bool) Set(val string) error {
	val = strings.ToLower(strings.TrimSpace(val))

	if v, ok := boolWords[val]; ok {
		*b = Bool(v)
		return nil
	}

	v, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("'%s' is not a boolean", val)
	}

	*b = Bool(v)

	return nil
}

func (b *Bool) String() string  { return strconv.FormatBool(bool(*b)) }
func (b *Bool) Validate() error { return nil }
func (b *Bool) IsEmpty() bool   { return !bool(*b) }

// Int is a decimal integer. The range is checked by the validation of the
// configuration data.
type Int int

func NewInt(p *int, val int) *Int {
	*p = val

	return (*Int)(p)
}

func (i *Int) Set(val string) error {
	v, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("'%s' is not an integer", strings.TrimSpace(val))
	}

	*i = Int(v)

	return nil
}

func (i *Int) String() string  { return strconv.Itoa(int(*i)) }
func (i *Int) Validate() error { return nil }
func (i *Int) IsEmpty() bool   { return *i == 0 }
