package mqtt

import "strings"

// topicRoot prefixes the node's own housekeeping topics. Status and control
// topics are configured (config.MQTTTopicsConfig), not built.
const topicRoot = "classroom"

// Topics builds housekeeping topic names.
type Topics struct{}

// Presence returns the retained online/offline topic for a node,
// e.g. classroom/classroom-node-01/presence.
func (Topics) Presence(clientID string) string {
	return topicRoot + "/" + clientID + "/presence"
}

// ValidTopic reports whether topic can be published to: non-empty and free
// of wildcards and NUL characters.
func ValidTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#\x00")
}
