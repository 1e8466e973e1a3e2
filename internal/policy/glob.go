package policy

import "github.com/bmatcuk/doublestar/v4"

// GlobMatch checks if an argument value matches a glob pattern. Database
// and branch names contain no separators, so * and ** behave alike there;
// ** still spans "/" in free-form values.
func GlobMatch(pattern, value string) bool {
	matched, err := doublestar.Match(pattern, value)
	if err != nil {
		return false
	}
	return matched
}
