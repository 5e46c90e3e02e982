// Package vars keeps track of the configuration variables, where their values
// come from, and what went wrong while setting or validating them.
package vars

import (
	"fmt"
	"os"

	"github.com/datarhei/p1203/config/value"
)

// Source tells where the current value of a variable comes from. The sources
// are listed from the lowest to the highest precedence.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// Variable is the description of a registered variable.
type Variable struct {
	Value       string
	Default     string
	Name        string
	EnvName     string
	Description string
	Source      Source
}

type entry struct {
	Variable

	value    value.Value
	required bool
}

func (e *entry) snapshot() Variable {
	v := e.Variable
	v.Value = e.value.String()

	return v
}

type message struct {
	level    string
	text     string
	variable Variable
}

// Variables is a registry of variables. The zero value is ready to use.
type Variables struct {
	entries []*entry
	index   map[string]*entry
	logs    []message
}

// Register adds a variable. Its current value becomes the default.
func (vs *Variables) Register(val value.Value, name, envName, description string, required bool) {
	e := &entry{
		Variable: Variable{
			Default:     val.String(),
			Name:        name,
			EnvName:     envName,
			Description: description,
			Source:      SourceDefault,
		},
		value:    val,
		required: required,
	}

	if vs.index == nil {
		vs.index = map[string]*entry{}
	}

	vs.entries = append(vs.entries, e)
	vs.index[name] = e
}

func (vs *Variables) lookup(name string) (*entry, error) {
	e, ok := vs.index[name]
	if !ok {
		return nil, fmt.Errorf("unknown variable '%s'", name)
	}

	return e, nil
}

// Transfer copies the sources of the variables with the same name from other.
func (vs *Variables) Transfer(other *Variables) {
	for _, e := range vs.entries {
		if o, ok := other.index[e.Name]; ok {
			e.Source = o.Source
		}
	}
}

// MarkChanged sets the source of all variables that still have their default
// source but whose value differs from the default.
func (vs *Variables) MarkChanged(source Source) {
	for _, e := range vs.entries {
		if e.Source == SourceDefault && e.value.String() != e.Default {
			e.Source = source
		}
	}
}

// SetDefault resets the variable to its default value.
func (vs *Variables) SetDefault(name string) {
	e, err := vs.lookup(name)
	if err != nil {
		return
	}

	e.value.Set(e.Default)
	e.Source = SourceDefault
}

func (vs *Variables) Get(name string) (string, error) {
	e, err := vs.lookup(name)
	if err != nil {
		return "", err
	}

	return e.value.String(), nil
}

// Set sets the value of a variable from a command line flag.
func (vs *Variables) Set(name, val string) error {
	e, err := vs.lookup(name)
	if err != nil {
		return err
	}

	if err := e.value.Set(val); err != nil {
		return err
	}

	e.Source = SourceFlag

	return nil
}

// Log adds a message about the named variable. Messages about unknown
// variables are dropped.
func (vs *Variables) Log(level, name string, format string, args ...interface{}) {
	e, err := vs.lookup(name)
	if err != nil {
		return
	}

	vs.logs = append(vs.logs, message{
		level:    level,
		text:     fmt.Sprintf(format, args...),
		variable: e.snapshot(),
	})
}

// Merge overrides the values with the ones from the environment. Values
// that have been set by a flag are left untouched. A value that can't be
// parsed is logged as an error and the previous value is kept.
func (vs *Variables) Merge() {
	for _, e := range vs.entries {
		if e.EnvName == "" || e.Source == SourceFlag {
			continue
		}

		val, ok := os.LookupEnv(e.EnvName)
		if !ok {
			continue
		}

		if err := e.value.Set(val); err != nil {
			vs.Log("error", e.Name, "%s: %s", e.EnvName, err.Error())
			continue
		}

		e.Source = SourceEnv
	}
}

// Validate logs an error for every variable with an invalid value and for
// every required variable without a value.
func (vs *Variables) Validate() {
	for _, e := range vs.entries {
		if err := e.value.Validate(); err != nil {
			vs.Log("error", e.Name, "%s", err.Error())
		}

		if e.required && e.value.IsEmpty() {
			vs.Log("error", e.Name, "a value is required")
		}
	}
}

func (vs *Variables) ResetLogs() {
	vs.logs = nil
}

// Messages calls logger for every logged message in the order they have
// been logged.
func (vs *Variables) Messages(logger func(level string, v Variable, message string)) {
	for _, m := range vs.logs {
		logger(m.level, m.variable, m.text)
	}
}

func (vs *Variables) HasErrors() bool {
	for _, m := range vs.logs {
		if m.level == "error" {
			return true
		}
	}

	return false
}

// Overrides returns the names of the variables that have been set
// from the environment or by a flag.
func (vs *Variables) Overrides() []string {
	names := []string{}

	for _, e := range vs.entries {
		if e.Source == SourceEnv || e.Source == SourceFlag {
			names = append(names, e.Name)
		}
	}

	return names
}

// Describe returns all registered variables in the order of registration.
func (vs *Variables) Describe() []Variable {
	list := make([]Variable, len(vs.entries))

	for i, e := range vs.entries {
		list[i] = e.snapshot()
	}

	return list
}
