package mqtt

import (
	"fmt"
)

// validateSubscribe checks the filters, QoS and handler of a subscribe call.
func validateSubscribe(topics []string, qos byte, handler MessageHandler) error {
	if len(topics) == 0 {
		return ErrInvalidTopic
	}
	for _, topic := range topics {
		if topic == "" {
			return ErrInvalidTopic
		}
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	return nil
}

// Subscribe registers one handler for a set of topic filters, sent to the
// broker as a single SUBSCRIBE. Filters may use + and # wildcards:
//
//	err := client.Subscribe(1, handler,
//	    client.Topics().AllChanges(),
//	    client.Topics().AllErrors())
//
// Either every filter is subscribed or none is. Subscribed filters are
// restored after a reconnect. The handler runs on paho's goroutine and
// recovers from panics.
func (c *Client) Subscribe(qos byte, handler MessageHandler, topics ...string) error {
	if err := validateSubscribe(topics, qos, handler); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	filters := make(map[string]byte, len(topics))
	c.subMu.Lock()
	for _, topic := range topics {
		filters[topic] = qos
		c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	}
	c.subMu.Unlock()

	token := c.client.SubscribeMultiple(filters, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.forget(topics)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topics)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Unsubscribe drops the given filters. Messages already in flight may
// still reach the handler.
func (c *Client) Unsubscribe(topics ...string) error {
	if len(topics) == 0 {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topics)

	token := c.client.Unsubscribe(topics...)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}

// forget stops tracking topics for reconnect.
func (c *Client) forget(topics []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, topic := range topics {
		delete(c.subscriptions, topic)
	}
}

// SubscriptionCount returns the number of tracked topic filters.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}
