package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "sqliteop"

// Topics builds the sqliteop topic hierarchy under a prefix:
//
//	{prefix}/system/status
//	{prefix}/{database}/changes/{operation}
//	{prefix}/{database}/errors/{operation}
//
// Using these helpers keeps publishers and subscribers in agreement.
//
//	topics := mqtt.Topics{Prefix: "sqliteop"}
//	topics.Changes("app.db", "insert_update_row")
//	// Returns: "sqliteop/app.db/changes/insert_update_row"
type Topics struct {
	Prefix string
}

// prefix returns the configured prefix or the default.
func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: sqliteop/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// Changes returns the topic for successful mutations of one database.
//
// Example: sqliteop/app.db/changes/execute_query
func (t Topics) Changes(database, operation string) string {
	return fmt.Sprintf("%s/%s/changes/%s", t.prefix(), database, operation)
}

// Errors returns the topic for failed calls against one database.
//
// Example: sqliteop/app.db/errors/select_query
func (t Topics) Errors(database, operation string) string {
	return fmt.Sprintf("%s/%s/errors/%s", t.prefix(), database, operation)
}

// DatabaseChanges returns a pattern matching every change of one database.
//
// Pattern: sqliteop/app.db/changes/+
func (t Topics) DatabaseChanges(database string) string {
	return fmt.Sprintf("%s/%s/changes/+", t.prefix(), database)
}

// AllChanges returns a pattern matching changes of every database.
//
// Pattern: sqliteop/+/changes/+
func (t Topics) AllChanges() string {
	return fmt.Sprintf("%s/+/changes/+", t.prefix())
}

// AllErrors returns a pattern matching failures of every database.
//
// Pattern: sqliteop/+/errors/+
func (t Topics) AllErrors() string {
	return fmt.Sprintf("%s/+/errors/+", t.prefix())
}

// AllTopics returns a pattern matching everything under the prefix.
//
// Pattern: sqliteop/#
func (t Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", t.prefix())
}
