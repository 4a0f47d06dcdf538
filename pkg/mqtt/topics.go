package mqtt

import "fmt"

// Topic patterns for the night mode agent
//
//	automation/command/light/{strip}                 brightness commands to the strip driver
//	automation/context/lighting/{strip}              published lighting context
//	automation/nightmode/{strip}/brightness/set      user (normal) brightness input
//	automation/nightmode/{strip}/config/set          configuration edits
//	automation/nightmode/{strip}/config              retained exported configuration
//	automation/nightmode/{strip}/config/info         retained UI hints
//	automation/nightmode/{strip}/status              retained online/offline availability
const topicNightModeBase = "automation/nightmode"

// LightCommandTopic is where brightness commands for a strip are published
func LightCommandTopic(strip string) string {
	return fmt.Sprintf("automation/command/light/%s", strip)
}

// LightingContextTopic is where lighting context for a strip is published
func LightingContextTopic(strip string) string {
	return fmt.Sprintf("automation/context/lighting/%s", strip)
}

// BrightnessSetTopic receives the user's normal brightness for a strip
func BrightnessSetTopic(strip string) string {
	return fmt.Sprintf("%s/%s/brightness/set", topicNightModeBase, strip)
}

// ConfigSetTopic receives configuration edits for a strip
func ConfigSetTopic(strip string) string {
	return fmt.Sprintf("%s/%s/config/set", topicNightModeBase, strip)
}

// ConfigTopic carries the retained exported configuration of a strip
func ConfigTopic(strip string) string {
	return fmt.Sprintf("%s/%s/config", topicNightModeBase, strip)
}

// ConfigInfoTopic carries the retained configuration field hints of a strip
func ConfigInfoTopic(strip string) string {
	return fmt.Sprintf("%s/%s/config/info", topicNightModeBase, strip)
}

// StatusTopic carries the retained availability of the agent for a strip
func StatusTopic(strip string) string {
	return fmt.Sprintf("%s/%s/status", topicNightModeBase, strip)
}
