package mqtt

import (
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type haDevice struct {
	Identifiers  []string `json:"ids,omitempty"`
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
	Name         string   `json:"name,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
}

type haEntity struct {
	AvailabilityTopic string `json:"avty_t,omitempty"`
	UniqueID          string `json:"uniq_id,omitempty"`
	Name              string `json:"name,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`

	Device haDevice `json:"device,omitempty"`
}

type haCover struct {
	haEntity
	StateTopic       string `json:"stat_t"`
	CommandTopic     string `json:"cmd_t"`
	PositionTopic    string `json:"pos_t"`
	SetPositionTopic string `json:"set_pos_t"`
	PositionOpen     int    `json:"pos_open"`
	PositionClosed   int    `json:"pos_clsd"`
	PayloadOpen      string `json:"pl_open"`
	PayloadStop      string `json:"pl_stop"`
	PayloadClose     string `json:"pl_cls"`
}

type haBinarySensor struct {
	haEntity
	StateTopic string `json:"stat_t"`
	PayloadOn  string `json:"pl_on"`
	PayloadOff string `json:"pl_off"`
}

func haControllerDevice(controllerID string) haDevice {
	return haDevice{
		Identifiers:  []string{fmt.Sprintf("inelnet_%s", controllerID)},
		Manufacturer: "Inel",
		Model:        "InelNET",
		Name:         fmt.Sprintf("InelNET %s", controllerID),
		SWVersion:    "inelnet2mqtt",
	}
}

// NewHACoverFromMQTTBridge builds a Home Assistant MQTT discovery config
// for one bridged blind.
func NewHACoverFromMQTTBridge(bridge *Bridge, controllerID string) haCover {
	return haCover{
		haEntity: haEntity{
			AvailabilityTopic: AvailabilityTopic(controllerID),
			UniqueID:          fmt.Sprintf("inelnet_%s_%s", controllerID, bridge.cover.Name()),
			Name:              bridge.cover.Name(),
			DeviceClass:       "blind",

			Device: haControllerDevice(controllerID),
		},
		StateTopic:       bridge.StateTopic,
		CommandTopic:     bridge.CommandTopic,
		PositionTopic:    bridge.PositionTopic,
		SetPositionTopic: bridge.PositionChangeTopic,
		PositionOpen:     bridge.cover.FullOpenPosition(),
		PositionClosed:   bridge.cover.FullClosePosition(),
		PayloadOpen:      mqttOpenCmd,
		PayloadStop:      mqttStopCmd,
		PayloadClose:     mqttCloseCmd,
	}
}

// NewHAConnectivitySensor exposes the debounced controller reachability
// as a Home Assistant connectivity binary sensor.
func NewHAConnectivitySensor(controllerID string) haBinarySensor {
	return haBinarySensor{
		haEntity: haEntity{
			UniqueID:    fmt.Sprintf("inelnet_%s_connected", controllerID),
			Name:        fmt.Sprintf("InelNET %s connection", controllerID),
			DeviceClass: "connectivity",

			Device: haControllerDevice(controllerID),
		},
		StateTopic: AvailabilityTopic(controllerID),
		PayloadOn:  mqttOnlinePayload,
		PayloadOff: mqttOfflinePayload,
	}
}

func PublishHAAutoDiscovery(client paho.Client, discoveryTopicPrefix string, haCover haCover) error {
	topic := fmt.Sprintf("%s/cover/%s/%s/config", discoveryTopicPrefix, topicPrefix, haCover.Name)
	return publishDiscovery(client, topic, haCover)
}

func PublishHAConnectivityDiscovery(client paho.Client, discoveryTopicPrefix string, sensor haBinarySensor) error {
	topic := fmt.Sprintf("%s/binary_sensor/%s/%s/config", discoveryTopicPrefix, topicPrefix, sensor.UniqueID)
	return publishDiscovery(client, topic, sensor)
}

func publishDiscovery(client paho.Client, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if token := client.Publish(topic, 0, true, data); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}
