package schema

import (
	"fmt"
	"regexp"
)

// MaxNameLen is the Postgres identifier length ceiling.
const MaxNameLen = 63

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Valid reports whether name is safe to use as a schema identifier. Schema
// names cannot be bound as query parameters, so this allow-list is the only
// defense before a name is interpolated into SQL. No normalization, no
// escaping fallback.
func Valid(name string) bool {
	if name == "" || len(name) > MaxNameLen {
		return false
	}
	return namePattern.MatchString(name)
}

// Qualify returns the quoted, schema-qualified reference for table. It must
// only be called with a name that already passed Valid; calling it with
// anything else is a programming error.
func Qualify(name, table string) string {
	if !Valid(name) {
		panic("schema: Qualify called with unvalidated name " + fmt.Sprintf("%q", name))
	}
	return fmt.Sprintf("%q.%q", name, table)
}
