// Package proximity feeds short-range sightings published over MQTT into the
// discovery ranker.
package proximity

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/config"
	"github.com/dkeye/SoundSync/internal/domain"
)

// Observer receives decoded samples. It must not block.
type Observer interface {
	Observe(domain.ProximitySample)
}

type wireSample struct {
	SourceID   string   `json:"source_id"`
	DistanceM  *float64 `json:"distance_m"`
	ObservedAt int64    `json:"observed_at"`
}

// Decode parses one message payload. observed_at is unix milliseconds; zero
// means "now".
func Decode(payload []byte, now time.Time) (domain.ProximitySample, error) {
	var w wireSample
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.ProximitySample{}, fmt.Errorf("decode sample: %w", err)
	}
	if w.SourceID == "" {
		return domain.ProximitySample{}, fmt.Errorf("decode sample: %w: missing source_id", domain.ErrInvalidInput)
	}
	if w.DistanceM == nil || *w.DistanceM < 0 {
		return domain.ProximitySample{}, fmt.Errorf("decode sample: %w: bad distance_m", domain.ErrInvalidInput)
	}
	at := now
	if w.ObservedAt > 0 {
		at = time.UnixMilli(w.ObservedAt)
	}
	return domain.ProximitySample{
		SourceID:                domain.MemberID(w.SourceID),
		EstimatedDistanceMeters: *w.DistanceM,
		ObservedAt:              at,
	}, nil
}

// Handler returns the paho callback that decodes and forwards samples.
// Bad payloads are logged and dropped.
func Handler(obs Observer) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		s, err := Decode(msg.Payload(), time.Now())
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.proximity").Str("topic", msg.Topic()).Msg("dropping sample")
			return
		}
		obs.Observe(s)
	}
}

// Feed is a connected MQTT subscription.
type Feed struct {
	client mqtt.Client
	topic  string
}

func Connect(cfg config.MQTTConfig, obs Observer) (*Feed, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		// Resubscribe after every reconnect; the session is clean.
		if token := c.Subscribe(cfg.Topic, cfg.QoS, Handler(obs)); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("module", "adapters.proximity").Str("topic", cfg.Topic).Msg("subscribe failed")
			return
		}
		log.Info().Str("module", "adapters.proximity").Str("topic", cfg.Topic).Msg("subscribed")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("module", "adapters.proximity").Msg("connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &Feed{client: client, topic: cfg.Topic}, nil
}

func (f *Feed) Close() {
	if token := f.client.Unsubscribe(f.topic); token.Wait() && token.Error() != nil {
		log.Warn().Err(token.Error()).Str("module", "adapters.proximity").Msg("unsubscribe failed")
	}
	f.client.Disconnect(250)
}
