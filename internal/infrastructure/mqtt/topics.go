package mqtt

import (
	"fmt"
	"strings"
)

// Topic roots.
const (
	// DefaultDataPrefix is the root for table change events.
	DefaultDataPrefix = "vimqa/data"

	// TopicPrefixSystem is the root for service status topics.
	TopicPrefixSystem = "vimqa/system"
)

// Topics builds vimqa MQTT topics.
//
// Change events use {prefix}/{table}/{op}, where table is the physical
// table name and op is insert, update, or delete:
//
//	topics := mqtt.Topics{Prefix: "vimqa/data"}
//	topics.Change("testcases", "update")
//	// Returns: "vimqa/data/testcases/update"
//
// The zero value uses DefaultDataPrefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.TrimRight(t.Prefix, "/")
	if p == "" {
		return DefaultDataPrefix
	}
	return p
}

// Change returns the topic for one kind of change to a table.
//
// Example: vimqa/data/modules/insert
func (t Topics) Change(table, op string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix(), table, op)
}

// TableChanges returns a pattern matching every change to a table.
//
// Pattern: vimqa/data/modules/+
func (t Topics) TableChanges(table string) string {
	return fmt.Sprintf("%s/%s/+", t.prefix(), table)
}

// AllChanges returns a pattern matching every change event.
//
// Pattern: vimqa/data/#
func (t Topics) AllChanges() string {
	return t.prefix() + "/#"
}

// ParseChange splits a change topic into its table and op.
func (t Topics) ParseChange(topic string) (table, op string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/")
	if !found {
		return "", "", false
	}
	table, op, found = strings.Cut(rest, "/")
	if !found || table == "" || op == "" || strings.Contains(op, "/") {
		return "", "", false
	}
	return table, op, true
}

// SystemStatus returns the retained service status topic.
//
// Example: vimqa/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
