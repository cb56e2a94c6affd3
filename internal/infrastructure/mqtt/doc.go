// Package mqtt provides MQTT client connectivity for Climate Core.
//
// The broker carries three kinds of traffic:
//
//	sensor nodes  -> climate/sensor/{pin}/reading   -> hardware mqtt driver
//	core          -> climate/actuator/{gpio}/set    -> actuator nodes (retained)
//	core          -> climate/unit/{id}/sample, climate/alert/unit/{id}
//
// The client reconnects with exponential backoff, restores subscriptions
// after a reconnect and keeps a retained online/offline status (with a
// Last Will) on climate/system/status.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllSensorReadings(), 1,
//	    func(topic string, payload []byte) error {
//	        pin, _ := mqtt.Topics{}.ParseSensorReading(topic)
//	        return cache.Store(pin, payload)
//	    })
//
// Use TLS (mqtt.broker.tls) for anything beyond a bench setup.
package mqtt
