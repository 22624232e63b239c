package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jkaflik/inelnet2mqtt/internal/cover"
)

const (
	mqttOpenCmd       = "open"
	mqttCloseCmd      = "close"
	mqttStopCmd       = "stop"
	mqttOpenShortCmd  = "open_short"
	mqttCloseShortCmd = "close_short"

	mqttOnlinePayload  = "online"
	mqttOfflinePayload = "offline"

	topicPrefix = "inelnet2mqtt"
)

// Bridge connects a single cover to the MQTT topic tree. State and
// position are published retained so consumers see the last estimate
// after reconnecting, and so the estimate survives a restart of this
// process via the retained-position restore.
type Bridge struct {
	mqtt  mqtt.Client
	cover cover.Cover

	StateTopic    string
	PositionTopic string
	MetadataTopic string

	CommandTopic        string
	PositionChangeTopic string
}

func NewBridge(mqtt mqtt.Client, cover cover.Cover) *Bridge {
	b := &Bridge{mqtt: mqtt, cover: cover}
	b.StateTopic = fmt.Sprintf("%s/%s/state", topicPrefix, cover.Name())
	b.PositionTopic = fmt.Sprintf("%s/%s/position", topicPrefix, cover.Name())
	b.MetadataTopic = fmt.Sprintf("%s/%s/metadata", topicPrefix, cover.Name())
	b.CommandTopic = fmt.Sprintf("%s/%s/set", topicPrefix, cover.Name())
	b.PositionChangeTopic = fmt.Sprintf("%s/%s/position/set", topicPrefix, cover.Name())
	b.restorePosition()

	cover.OnUpdate(b.onCoverUpdateHandler())

	return b
}

func (b *Bridge) SetMetadata(value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if token := b.mqtt.Publish(b.MetadataTopic, 0, true, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT metadata publish failed", b.cover.Name())
	}

	return nil
}

func (b *Bridge) Subscribe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if token := b.mqtt.Unsubscribe(b.PositionChangeTopic, b.CommandTopic); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT topics unsubscribe failed: %s", b.cover.Name(), token.Error())
		}
	}()

	if token := b.mqtt.Subscribe(b.CommandTopic, 0, b.onCommandHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT command topic subscription failed", b.cover.Name())
	}
	logrus.Infof("%s: MQTT command topic subscribed", b.cover.Name())
	if token := b.mqtt.Subscribe(b.PositionChangeTopic, 0, b.onPositionChangeHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT position change topic subscription failed", b.cover.Name())
	}
	logrus.Infof("%s: MQTT position change topic subscribed", b.cover.Name())

	return nil
}

func (b *Bridge) onCoverUpdateHandler() cover.UpdateHandler {
	return func(state string, position int) {
		if token := b.mqtt.Publish(b.StateTopic, 0, true, state); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT state publish failed: %s", b.cover.Name(), token.Error())
		}
		if token := b.mqtt.Publish(b.PositionTopic, 0, true, strconv.Itoa(position)); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT position publish failed: %s", b.cover.Name(), token.Error())
		}
	}
}

func (b *Bridge) onCommandHandler(ctx context.Context) mqtt.MessageHandler {
	return func(c mqtt.Client, msg mqtt.Message) {
		var err error

		switch cmd := string(msg.Payload()); cmd {
		case mqttOpenCmd:
			err = b.cover.Open(ctx)
		case mqttCloseCmd:
			err = b.cover.Close(ctx)
		case mqttStopCmd:
			err = b.cover.Stop(ctx)
		case mqttOpenShortCmd, mqttCloseShortCmd:
			nudger, ok := b.cover.(cover.Nudger)
			if !ok {
				logrus.Errorf("%s: MQTT %s command received but cover cannot nudge", b.cover.Name(), cmd)
				return
			}
			if cmd == mqttOpenShortCmd {
				err = nudger.NudgeOpen(ctx)
			} else {
				err = nudger.NudgeClose(ctx)
			}
		default:
			logrus.Errorf("%s: MQTT unsupported %s command received", b.cover.Name(), cmd)
			return
		}

		if err != nil {
			logrus.Error(err)
		}
	}
}

func (b *Bridge) onPositionChangeHandler(ctx context.Context) mqtt.MessageHandler {
	return func(c mqtt.Client, msg mqtt.Message) {
		pos, err := strconv.Atoi(string(msg.Payload()))
		if err != nil {
			logrus.Error(err)
			return
		}
		if err := b.cover.SetPosition(ctx, pos); err != nil {
			logrus.Error(err)
		}
	}
}

func (b *Bridge) restorePosition() {
	c, ok := b.cover.(cover.StatelessCover)
	if !ok {
		logrus.Warnf("%s: MQTT position restore: cover is not stateless", b.cover.Name())
		return
	}

	restoreHandler := func(_ mqtt.Client, msg mqtt.Message) {
		pos, err := strconv.Atoi(string(msg.Payload()))
		if err != nil {
			logrus.Error(err)
			return
		}
		if err := c.ResetPosition(pos); err != nil {
			logrus.Errorf("%s: MQTT position restore failed: %s", b.cover.Name(), err)
			return
		}

		logrus.Infof("%s: MQTT position restored to %d", b.cover.Name(), pos)

		if token := b.mqtt.Unsubscribe(b.PositionTopic); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT position restore topic unsubscribe failed: %s", b.cover.Name(), token.Error())
			return
		}

		logrus.Debugf("%s: MQTT position restore topic unsubscribed", b.cover.Name())
	}

	if token := b.mqtt.Subscribe(b.PositionTopic, 0, restoreHandler); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT position restore topic subscription failed: %s", b.cover.Name(), token.Error())
	}
}

// AvailabilityTopic is the controller-level online/offline topic shared
// by every cover behind one controller.
func AvailabilityTopic(controllerID string) string {
	return fmt.Sprintf("%s/%s/availability", topicPrefix, controllerID)
}

func PublishAvailability(client mqtt.Client, topic string, online bool) {
	payload := mqttOfflinePayload
	if online {
		payload = mqttOnlinePayload
	}

	if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		logrus.Errorf("MQTT availability publish failed: %s", token.Error())
	}
}

// CommandSender delivers a raw action code to a channel. Implemented by
// the InelNET client.
type CommandSender interface {
	SendRaw(ctx context.Context, channel int, code int) bool
}

// SubscribeRawCommands exposes a maintenance passthrough topic accepting
// "<channel>:<action code>" payloads, useful for channels that have no
// cover configured yet.
func SubscribeRawCommands(ctx context.Context, client mqtt.Client, controllerID string, sender CommandSender) error {
	topic := fmt.Sprintf("%s/%s/command", topicPrefix, controllerID)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		channel, code, err := parseRawCommand(string(msg.Payload()))
		if err != nil {
			logrus.Errorf("%s: %s", topic, err)
			return
		}
		if !sender.SendRaw(ctx, channel, code) {
			logrus.Errorf("%s: raw command %d for channel %d not delivered", topic, code, channel)
		}
	}

	if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "MQTT raw command topic subscription failed")
	}
	logrus.Infof("%s: MQTT raw command topic subscribed", topic)

	return nil
}

func parseRawCommand(payload string) (channel, code int, err error) {
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("malformed raw command %q, want <channel>:<action>", payload)
	}

	channel, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, errors.Errorf("malformed channel in raw command %q", payload)
	}
	code, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, errors.Errorf("malformed action in raw command %q", payload)
	}

	return channel, code, nil
}
