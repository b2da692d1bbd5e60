// Package mqtt provides MQTT client connectivity for pinctl Core.
//
// The broker is the optional second transport to the device gateway: a
// dispatch is published on pinctl/command/{ref_id} and the gateway answers
// on pinctl/response/{request_id}. The client manages:
//   - Connection with auto-reconnect and subscription restore
//   - Publishing with QoS and payload size checks
//   - Subscriptions with panic-safe handlers
//   - Last Will and Testament on pinctl/system/status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Prefix: cfg.Gateway.TopicPrefix}
//	err = client.Subscribe(topics.Response(requestID), 1,
//	    func(topic string, payload []byte) error {
//	        return handleReply(payload)
//	    })
//
// TLS should be enabled (mqtt.broker.tls) whenever the broker is not on the
// local host; payloads carry command ids and ref_ids in clear text.
package mqtt
