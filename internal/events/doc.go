// Package events turns table-layer writes into MQTT change events so the
// web Test Manager and other tools can follow catalogue edits live.
//
//	pub := events.NewPublisher(client, mqtt.Topics{Prefix: cfg.Events.TopicPrefix}, client.QoS())
//	layer.SetObserver(pub)
package events
