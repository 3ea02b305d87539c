package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/utilcast/core/events"
	"github.com/kilianp07/utilcast/infra/logger"
	"github.com/kilianp07/utilcast/internal/eventbus"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Notification is the JSON body published for a forecast event.
type Notification struct {
	MessageID  string   `json:"message_id"`
	Event      string   `json:"event"`
	RunID      string   `json:"run_id,omitempty"`
	Year       int      `json:"year"`
	Month      int      `json:"month"`
	Models     []string `json:"models,omitempty"`
	Records    int      `json:"records"`
	DurationMS int64    `json:"duration_ms,omitempty"`
	Class      string   `json:"class,omitempty"`
	Error      string   `json:"error,omitempty"`
	Timestamp  int64    `json:"timestamp"`
}

// Notifier turns forecast events into MQTT notifications on
// <topic>/<YYYY-MM>/<event>.
type Notifier struct {
	pub   Publisher
	topic string
	log   logger.Logger
}

// NewNotifier returns a Notifier publishing under topic.
func NewNotifier(pub Publisher, topic string, log logger.Logger) *Notifier {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = logger.New("mqtt_notifier")
	}
	return &Notifier{pub: pub, topic: topic, log: log}
}

// Notify publishes ev. Events other than computed and failed forecasts are
// ignored.
func (n *Notifier) Notify(ev events.Event) error {
	var msg Notification
	switch e := ev.(type) {
	case events.ForecastComputed:
		msg = Notification{
			Event:      "computed",
			RunID:      e.RunID,
			Models:     e.Models,
			Records:    len(e.Records),
			DurationMS: e.Duration.Milliseconds(),
			Timestamp:  e.Time.UnixMilli(),
		}
	case events.ForecastFailed:
		msg = Notification{
			Event:     "failed",
			Class:     e.Class,
			Timestamp: e.Time.UnixMilli(),
		}
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
	default:
		return nil
	}
	p := ev.EventPeriod()
	msg.MessageID = uuid.NewString()
	msg.Year, msg.Month = p.Year, p.Month
	if msg.Timestamp <= 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/%s", n.topic, p, msg.Event)
	if err := n.pub.Publish(topic, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	n.log.Infof("sent %s notification %s to %s", msg.Event, msg.MessageID, topic)
	return nil
}

// Start forwards bus events to the notifier until ctx is done or the bus is
// closed. The returned channel is closed when forwarding stops.
func (n *Notifier) Start(ctx context.Context, bus *eventbus.Bus[events.Event]) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := n.Notify(ev); err != nil {
					n.log.Errorf("notification failed: %v", err)
				}
			}
		}
	}()
	return done
}
