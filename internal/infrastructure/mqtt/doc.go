// Package mqtt provides MQTT client connectivity for the classroom node.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - A retained presence record per node, with a will for crashes
//   - Connection counters for the metrics endpoint (Status)
//
// # Architecture
//
// MQTT is an optional second path to the aggregator alongside the serial
// link. Status payloads go out on the configured status topic and control
// payloads arrive on the control topic; the remote package owns their
// meaning, this package only moves bytes.
//
//	classroomd ↔ MQTT Broker ↔ Aggregator
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, log.Component("mqtt"))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(cfg.MQTT.Topics.Control, 1,
//	    func(topic string, payload []byte) error {
//	        return handle(payload)
//	    })
//
//	client.Publish(cfg.MQTT.Topics.Status, payload, 1, false)
package mqtt
