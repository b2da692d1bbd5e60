package mqtt

import "fmt"

// DefaultTopicPrefix is the root of every pinctl topic.
const DefaultTopicPrefix = "pinctl"

// Topics builds pinctl MQTT topics under Prefix.
//
// The zero value uses DefaultTopicPrefix:
//
//	Topics{}.Command("LED_ON_01")        // pinctl/command/LED_ON_01
//	Topics{Prefix: "lab"}.Response("r1") // lab/response/r1
type Topics struct {
	Prefix string
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Command returns the topic a gateway listens on for a command ref_id.
//
// Example: pinctl/command/LED_ON_01
func (t Topics) Command(refID string) string {
	return fmt.Sprintf("%s/command/%s", t.root(), refID)
}

// Response returns the topic a gateway answers a dispatch request on.
//
// Example: pinctl/response/7f7c2b9e-...
func (t Topics) Response(requestID string) string {
	return fmt.Sprintf("%s/response/%s", t.root(), requestID)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: pinctl/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.root())
}
