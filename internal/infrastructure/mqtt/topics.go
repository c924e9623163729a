package mqtt

import "strings"

// TopicPrefix is the root namespace for topics owned by SoilSense itself.
// Sensor reading topics are configured, not derived from it.
const TopicPrefix = "soilsense"

// Topics provides builders for SoilSense-owned topics.
//
// Example:
//
//	topic := mqtt.Topics{}.Status("soilsense-sub")
//	// Returns: "soilsense/status/soilsense-sub"
type Topics struct{}

// Status returns the retained online/offline status topic for a client.
// The broker publishes the client's Last Will here on unexpected disconnect.
func (Topics) Status(clientID string) string {
	return TopicPrefix + "/status/" + clientID
}

// AllStatus returns a wildcard matching every client's status topic.
func (Topics) AllStatus() string {
	return TopicPrefix + "/status/+"
}

// ValidateTopic reports whether topic is usable as a subscription filter.
//
// Wildcards must occupy a whole level and '#' may only appear last.
func ValidateTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if strings.ContainsRune(topic, 0) {
		return ErrInvalidTopic
	}

	levels := strings.Split(topic, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return ErrInvalidTopic
			}
		case level == "+":
		case strings.ContainsAny(level, "+#"):
			return ErrInvalidTopic
		}
	}
	return nil
}
