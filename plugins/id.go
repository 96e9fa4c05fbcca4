package plugins

import (
	"regexp"
)

// pluginIDPattern restricts plugin ids to letters, digits, underscore and hyphen.
var pluginIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidatePluginID checks the id charset. Empty ids are invalid.
func ValidatePluginID(id string) error {
	if !pluginIDPattern.MatchString(id) {
		return ErrInvalidPluginID
	}
	return nil
}
