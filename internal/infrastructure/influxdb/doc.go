// Package influxdb records sqliteop operation timings in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every operator call
// becomes one point in the sqliteop_operations measurement, tagged by
// database, operation, intent and outcome. The monitoring server also
// samples the database file into sqliteop_files.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	op.SetObserver(client.Observer())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes, so the
// observer never waits on the network.
package influxdb
