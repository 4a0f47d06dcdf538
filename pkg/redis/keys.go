package redis

import "fmt"

// UsermodConfigKey returns the hash holding persisted usermod configuration.
// Each field is a usermod namespace, each value that namespace's JSON object.
// Pattern: config:usermods:{strip}
func UsermodConfigKey(strip string) string {
	return fmt.Sprintf("config:usermods:%s", strip)
}

// BrightnessKey returns the key for the last known normal brightness of a strip
// Pattern: state:brightness:{strip}
func BrightnessKey(strip string) string {
	return fmt.Sprintf("state:brightness:%s", strip)
}
