package main

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/jkaflik/inelnet2mqtt/internal/cover/driver/inelnet"
	"github.com/jkaflik/inelnet2mqtt/internal/solar"
)

type cfgController struct {
	Host          string `yaml:"host" env:"HOST"`
	Timeout       int    `yaml:"timeout" default:"5"`        // seconds, per HTTP attempt
	Retries       int    `yaml:"retries" default:"2"`
	RetryDelayMs  int    `yaml:"retry_delay_ms" default:"800"`
	ProbeInterval int    `yaml:"probe_interval" default:"60"` // seconds
}

type cfgCover struct {
	Channel    int    `yaml:"channel"`
	Name       string `yaml:"name"`
	TravelTime int    `yaml:"travel_time" default:"20"` // seconds for a full traverse
	Facade     string `yaml:"facade"`
	Floor      string `yaml:"floor"`
	Shaded     bool   `yaml:"shaded"`
}

type cfgMQTT struct {
	ClientID string `yaml:"client_id" default:"inelnet2mqtt" env:"CLIENT_ID"`
	Broker   string `yaml:"broker" default:"127.0.0.1:1883" env:"BROKER"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

type cfgHASS struct {
	Enabled     bool   `yaml:"enabled" default:"true" env:"ENABLED"`
	TopicPrefix string `yaml:"topic_prefix" default:"homeassistant" env:"TOPIC_PREFIX"`
}

type cfgSolar struct {
	Enabled        bool    `yaml:"enabled" default:"false"`
	APIKey         string  `yaml:"api_key" env:"API_KEY"`
	Latitude       float64 `yaml:"latitude"`
	Longitude      float64 `yaml:"longitude"`
	UpdateInterval int     `yaml:"update_interval" default:"900"` // seconds
}

type cfgMetrics struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Listen  string `yaml:"listen" default:":9226"`
	Path    string `yaml:"path" default:"/metrics"`
}

var Cfg struct {
	LogLevel string `yaml:"log_level" default:"info" env:"LOG_LEVEL"`

	MQTT       cfgMQTT       `yaml:"mqtt" env:"MQTT"`
	HASS       cfgHASS       `yaml:"hass" env:"HASS"`
	Controller cfgController `yaml:"controller" env:"CONTROLLER"`
	Solar      cfgSolar      `yaml:"solar" env:"SOLAR"`
	Metrics    cfgMetrics    `yaml:"metrics"`

	Covers []cfgCover `yaml:"covers"`
}

var configLoader = aconfig.LoaderFor(&Cfg, aconfig.Config{
	EnvPrefix: "I2M",
})

func loadConfigFromYamlFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		logrus.Error(err)
		return
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&Cfg); err != nil {
		logrus.Fatal(err)
	}
}

// validateConfig rejects bad blind definitions before any state machine
// is built. Configuration mistakes must never surface mid-operation.
func validateConfig() error {
	if Cfg.Controller.Host == "" {
		return errors.New("controller.host is required")
	}
	if len(Cfg.Covers) == 0 {
		return errors.New("at least one cover must be configured")
	}

	channels := map[int]string{}
	names := map[string]bool{}
	for _, c := range Cfg.Covers {
		if c.Name == "" {
			return errors.Errorf("cover on channel %d has no name", c.Channel)
		}
		if names[c.Name] {
			return errors.Errorf("%s: duplicate cover name", c.Name)
		}
		names[c.Name] = true

		if c.Channel <= 0 {
			return errors.Errorf("%s: channel %d is out of range", c.Name, c.Channel)
		}
		if other, taken := channels[c.Channel]; taken {
			return errors.Errorf("%s: channel %d already used by %s", c.Name, c.Channel, other)
		}
		channels[c.Channel] = c.Name

		if c.TravelTime <= 0 {
			return errors.Errorf("%s: travel_time must be positive", c.Name)
		}
		if c.Facade != "" {
			if _, ok := solar.FacadeAngle(c.Facade); !ok {
				return errors.Errorf("%s: %s is not a known facade orientation", c.Name, c.Facade)
			}
		}
	}

	if Cfg.Solar.Enabled && Cfg.Solar.APIKey == "" {
		return errors.New("solar.api_key is required when solar is enabled")
	}

	return nil
}

func pahoOptsFromConfig() *paho.ClientOptions {
	return paho.NewClientOptions().
		SetClientID(Cfg.MQTT.ClientID).
		AddBroker(Cfg.MQTT.Broker).
		SetUsername(Cfg.MQTT.Username).
		SetPassword(Cfg.MQTT.Password).
		SetConnectTimeout(time.Second).
		SetPingTimeout(time.Second).
		SetWriteTimeout(time.Second).
		SetAutoReconnect(true)
}

func clientFromConfig() *inelnet.Client {
	return inelnet.NewClient(inelnet.ClientConfig{
		Host:       Cfg.Controller.Host,
		Timeout:    time.Duration(Cfg.Controller.Timeout) * time.Second,
		Retries:    Cfg.Controller.Retries,
		RetryDelay: time.Duration(Cfg.Controller.RetryDelayMs) * time.Millisecond,
	})
}

func blindsFromConfig(client *inelnet.Client) []*inelnet.Blind {
	blinds := make([]*inelnet.Blind, 0, len(Cfg.Covers))
	for _, c := range Cfg.Covers {
		blinds = append(blinds, inelnet.NewBlind(client, inelnet.SystemClock, inelnet.BlindConfig{
			Channel:    c.Channel,
			Name:       c.Name,
			TravelTime: time.Duration(c.TravelTime) * time.Second,
			Facade:     c.Facade,
			Floor:      c.Floor,
			Shaded:     c.Shaded,
		}))
	}

	return blinds
}
