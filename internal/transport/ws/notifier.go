package ws

import (
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/pkg/logger"
)

// HubNotifier forwards new messages from the broker to the receiver's
// connections and to the sender's other tabs.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// Start subscribes to message creation events until the returned func is called.
func (n *HubNotifier) Start(broker *realtime.Broker) realtime.Unsubscribe {
	return broker.Subscribe(func(evt realtime.Event) bool {
		return evt.Type == realtime.MessageCreated && evt.Message != nil
	}, func(evt realtime.Event) {
		msg := *evt.Message
		e, err := NewEvent(EventTypeMessageNew, MessagePayload{Message: msg})
		if err != nil {
			logger.Error().Err(err).Msg("ws notifier: marshal error")
			return
		}
		n.hub.BroadcastToUser(msg.ReceiverID, e)
		n.hub.BroadcastToUser(msg.SenderID, e)
	})
}
