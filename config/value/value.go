// Package value provides the types of the configuration variables. Each type
// wraps a pointer into the configuration data, such that setting the value
// changes the data directly.
package value

// Value is a configuration variable as seen by the vars registry.
type Value interface {
	// String returns the value as it is shown to the user.
	String() string

	// Set parses the string and stores the result. On error the value
	// is left untouched.
	Set(string) error

	// Validate returns an error describing what is wrong with the current
	// value, or nil.
	Validate() error

	// IsEmpty reports whether the value is the zero value of its type.
	IsEmpty() bool
}
