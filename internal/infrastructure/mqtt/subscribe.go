package mqtt

import "fmt"

// Subscribe routes messages on topic to handler.
//
// topic may contain wildcards ("luke/command/+"). The subscription is kept
// and replayed after every reconnect; a failed subscribe is not kept.
//
//	err := client.Subscribe(mqtt.Topics{}.AllCommands(), 1, sess.HandleCommand)
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	err := await(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), defaultPublishTimeout, ErrSubscribeFailed)
	if err != nil {
		c.mu.Lock()
		delete(c.subs, topic)
		c.mu.Unlock()
	}
	return err
}

// SubscriptionCount returns the number of kept subscriptions.
func (c *Client) SubscriptionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
