package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jkaflik/inelnet2mqtt/internal/cover/driver/inelnet"
	"github.com/jkaflik/inelnet2mqtt/internal/mqtt"
	"github.com/jkaflik/inelnet2mqtt/internal/solar"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})

	configPath := flag.String("config", "config.yaml", "config.yaml file path")
	flag.Parse()

	if err := configLoader.Load(); err != nil {
		logrus.Fatal(err)
	}
	loadConfigFromYamlFile(*configPath)

	if err := validateConfig(); err != nil {
		logrus.Fatal(err)
	}

	level, err := logrus.ParseLevel(Cfg.LogLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())

	client := clientFromConfig()
	controllerID := controllerIDFromHost(client.Host())

	if !client.TestConnection(ctx) {
		logrus.Warnf("InelNET controller at %s is not reachable, continuing anyway", client.Host())
	}

	var bridges []*mqtt.Bridge
	cfg := pahoOptsFromConfig()
	cfg.OnConnect = func(m paho.Client) {
		logrus.Info("MQTT broker connected")
		subscribe(ctx, m, controllerID, client, bridges)
	}
	cfg.OnConnectionLost = func(_ paho.Client, err error) {
		logrus.Errorf("MQTT broker connection lost: %s", err.Error())
	}

	m := paho.NewClient(cfg)
	if token := m.Connect(); token.Wait() && token.Error() != nil {
		logrus.Fatal(token.Error())
	}

	blinds := blindsFromConfig(client)
	for _, blind := range blinds {
		bridge := mqtt.NewBridge(m, blind)
		if err := bridge.SetMetadata(map[string]interface{}{
			"channel":            blind.Channel(),
			"travel_time":        blind.TravelTime().Seconds(),
			"facade":             blind.Facade(),
			"floor":              blind.Floor(),
			"shaded":             blind.Shaded(),
			"estimated_position": true,
		}); err != nil {
			logrus.Fatal(err)
		}
		bridges = append(bridges, bridge)
	}

	subscribe(ctx, m, controllerID, client, bridges)

	monitor := inelnet.NewMonitor(client, controllerID, time.Duration(Cfg.Controller.ProbeInterval)*time.Second)
	monitor.OnChange(func(online bool) {
		mqtt.PublishAvailability(m, mqtt.AvailabilityTopic(controllerID), online)
	})
	go monitor.Run(ctx)

	if Cfg.Solar.Enabled {
		startSolarTracker(ctx, m, controllerID, blinds)
	}

	if Cfg.Metrics.Enabled {
		startMetricsServer()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		oscall := <-c
		log.Printf("system call:%+v", oscall)
		cancel()
	}()

	<-ctx.Done()

	cleanupTime := time.Second
	logrus.Infof("cleanups for %s...", cleanupTime.String())
	time.Sleep(cleanupTime)
}

func subscribe(ctx context.Context, m paho.Client, controllerID string, client *inelnet.Client, bridges []*mqtt.Bridge) {
	for _, bridge := range bridges {
		if Cfg.HASS.Enabled {
			entity := mqtt.NewHACoverFromMQTTBridge(bridge, controllerID)
			if err := mqtt.PublishHAAutoDiscovery(m, Cfg.HASS.TopicPrefix, entity); err != nil {
				logrus.Fatal(err)
			}
		}

		if err := bridge.Subscribe(ctx); err != nil {
			logrus.Error(err)
		}
	}

	if len(bridges) > 0 {
		if Cfg.HASS.Enabled {
			sensor := mqtt.NewHAConnectivitySensor(controllerID)
			if err := mqtt.PublishHAConnectivityDiscovery(m, Cfg.HASS.TopicPrefix, sensor); err != nil {
				logrus.Fatal(err)
			}
		}

		mqtt.PublishAvailability(m, mqtt.AvailabilityTopic(controllerID), true)

		if err := mqtt.SubscribeRawCommands(ctx, m, controllerID, client); err != nil {
			logrus.Error(err)
		}
	}
}

func startSolarTracker(ctx context.Context, m paho.Client, controllerID string, blinds []*inelnet.Blind) {
	sun := solar.NewAstronomyClient(Cfg.Solar.APIKey, Cfg.Solar.Latitude, Cfg.Solar.Longitude)

	tracked := make([]solar.Blind, 0, len(blinds))
	for _, b := range blinds {
		if b.Facade() != "" {
			tracked = append(tracked, b)
		}
	}

	tracker := solar.NewTracker(sun, tracked, Cfg.Solar.Latitude, Cfg.Solar.Longitude,
		time.Duration(Cfg.Solar.UpdateInterval)*time.Second)
	tracker.OnReport(func(r solar.Report) {
		for facade, exposure := range r.Exposures {
			topic := fmt.Sprintf("inelnet2mqtt/%s/solar/%s", controllerID, strings.ToLower(facade))
			if token := m.Publish(topic, 0, true, fmt.Sprintf("%d", exposure)); token.Wait() && token.Error() != nil {
				logrus.Errorf("MQTT solar exposure publish failed: %s", token.Error())
			}
		}

		topic := fmt.Sprintf("inelnet2mqtt/%s/solar/energy_savings_kwh", controllerID)
		if token := m.Publish(topic, 0, true, fmt.Sprintf("%.2f", r.SavingsTotalKWh)); token.Wait() && token.Error() != nil {
			logrus.Errorf("MQTT energy savings publish failed: %s", token.Error())
		}
	})

	go tracker.Run(ctx)
}

func startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle(Cfg.Metrics.Path, promhttp.Handler())

	go func() {
		logrus.Infof("metrics exposed on %s%s", Cfg.Metrics.Listen, Cfg.Metrics.Path)
		if err := http.ListenAndServe(Cfg.Metrics.Listen, mux); err != nil {
			logrus.Errorf("metrics server failed: %s", err)
		}
	}()
}

func controllerIDFromHost(host string) string {
	return strings.NewReplacer(".", "-", ":", "-").Replace(host)
}
