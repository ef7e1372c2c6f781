// Package mqtt connects vimqa to an MQTT broker for change events.
//
// Writes made through the table layer are published as JSON on
// vimqa/data/{table}/{op} by the events package; the watch command and any
// other tool can subscribe to the same topics. The client also keeps a
// retained status message on vimqa/system/status, with a Last Will so
// subscribers learn when the service drops off.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Prefix: cfg.Events.TopicPrefix}
//	err = client.Subscribe(topics.AllChanges(), client.QoS(), handler)
//
// TLS is used when cfg.Broker.TLS is set; credentials are sent only when
// a username is configured.
package mqtt
