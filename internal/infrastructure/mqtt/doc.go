// Package mqtt connects the dashboard to an MQTT broker.
//
// The broker is optional. When configured, session events are published
// under luke/event/{type}, each node's points reading is retained under
// luke/node/{kind}/points, and link/unlink commands are accepted on
// luke/command/{name}. The client announces itself on luke/system/status,
// with a Last Will that flips the status to offline on a crash.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	err = client.Subscribe(topics.AllCommands(), 1, sess.HandleCommand)
//
//	client.Publish(topics.Event("link.changed"), payload, 0, false)
//
// Subscriptions are restored after every reconnect. Handler panics are
// recovered and logged.
package mqtt
