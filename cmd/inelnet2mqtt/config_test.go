package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withTestConfig(t *testing.T, covers []cfgCover) {
	t.Helper()

	saved := Cfg
	t.Cleanup(func() { Cfg = saved })

	Cfg.Controller.Host = "10.0.0.5"
	Cfg.Covers = covers
	Cfg.Solar = cfgSolar{}
}

func TestValidateConfig(t *testing.T) {
	t.Run("accepts a valid setup", func(t *testing.T) {
		withTestConfig(t, []cfgCover{
			{Channel: 1, Name: "salon", TravelTime: 20, Facade: "S"},
			{Channel: 2, Name: "kitchen", TravelTime: 25},
		})
		assert.NoError(t, validateConfig())
	})

	t.Run("requires a controller host", func(t *testing.T) {
		withTestConfig(t, []cfgCover{{Channel: 1, Name: "salon", TravelTime: 20}})
		Cfg.Controller.Host = ""
		assert.Error(t, validateConfig())
	})

	t.Run("requires at least one cover", func(t *testing.T) {
		withTestConfig(t, nil)
		assert.Error(t, validateConfig())
	})

	t.Run("rejects a cover without a name", func(t *testing.T) {
		withTestConfig(t, []cfgCover{{Channel: 1, TravelTime: 20}})
		assert.Error(t, validateConfig())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		withTestConfig(t, []cfgCover{
			{Channel: 1, Name: "salon", TravelTime: 20},
			{Channel: 2, Name: "salon", TravelTime: 20},
		})
		assert.Error(t, validateConfig())
	})

	t.Run("rejects duplicate channels", func(t *testing.T) {
		withTestConfig(t, []cfgCover{
			{Channel: 1, Name: "salon", TravelTime: 20},
			{Channel: 1, Name: "kitchen", TravelTime: 20},
		})
		assert.Error(t, validateConfig())
	})

	t.Run("rejects non-positive channels", func(t *testing.T) {
		withTestConfig(t, []cfgCover{{Channel: 0, Name: "salon", TravelTime: 20}})
		assert.Error(t, validateConfig())
	})

	t.Run("rejects non-positive travel time", func(t *testing.T) {
		withTestConfig(t, []cfgCover{{Channel: 1, Name: "salon"}})
		assert.Error(t, validateConfig())
	})

	t.Run("rejects unknown facades", func(t *testing.T) {
		withTestConfig(t, []cfgCover{{Channel: 1, Name: "salon", TravelTime: 20, Facade: "SSW"}})
		assert.Error(t, validateConfig())
	})

	t.Run("solar requires an API key", func(t *testing.T) {
		withTestConfig(t, []cfgCover{{Channel: 1, Name: "salon", TravelTime: 20}})
		Cfg.Solar.Enabled = true
		assert.Error(t, validateConfig())
	})
}

func TestControllerIDFromHost(t *testing.T) {
	assert.Equal(t, "10-0-0-5", controllerIDFromHost("10.0.0.5"))
	assert.Equal(t, "blinds-local-8080", controllerIDFromHost("blinds.local:8080"))
}
