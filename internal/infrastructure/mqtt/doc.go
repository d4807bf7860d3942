// Package mqtt publishes sqliteop change events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - A database.Observer that publishes mutating and failed calls
//   - Subscriptions for watching change events from other processes
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	{prefix}/system/status                   retained online/offline status
//	{prefix}/{database}/changes/{operation}  successful mutations
//	{prefix}/{database}/errors/{operation}   failed calls
//
// # Security Considerations
//
//   - Enable TLS for brokers outside localhost (cfg.Broker.TLS=true)
//   - Payloads carry statement text but never bound values
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	op.SetObserver(mqtt.NewPublisher(client, logger))
package mqtt
