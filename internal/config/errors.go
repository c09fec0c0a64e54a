package config

import "fmt"

// Mark points at a location inside a configuration file.
type Mark struct {
	File   string
	Line   int
	Column int
}

func (m Mark) String() string {
	if m.Line == 0 {
		if m.File == "" {
			return "<unknown>"
		}
		return m.File
	}
	file := m.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d", file, m.Line, m.Column)
}

// Error is a configuration-shape error: a node has the wrong type, a
// required field is missing or a value is malformed.
type Error struct {
	Mark Mark
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Mark, e.Msg)
}

// Errorf creates a configuration error located at m.
func Errorf(m Mark, format string, args ...interface{}) error {
	return &Error{Mark: m, Msg: fmt.Sprintf(format, args...)}
}
