package influxdb

import (
	"context"

	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
)

// Observer returns a database.Observer that writes one point per operator
// call to this client.
func (c *Client) Observer() database.Observer {
	return database.ObserverFunc(func(_ context.Context, ev database.Event) {
		c.WriteOperation(ev)
	})
}
