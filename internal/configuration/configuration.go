// Package configuration loads the adax-monitor configuration.
package configuration

import (
	"errors"
	"fmt"
	"github.com/clambin/adax-monitor/internal/discovery"
	"github.com/clambin/adax-monitor/internal/mqttbridge"
	"github.com/clambin/adax-monitor/pkg/adax"
	"github.com/clambin/go-common/charmer"
	"github.com/spf13/viper"
	"strings"
	"time"
)

// EnvKeyReplacer maps configuration keys to environment variables, e.g. adax.token to ADAX_MONITOR_ADAX_TOKEN.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Arguments are the configuration keys, with their default values. They are available as command line flags,
// in the configuration file and as ADAX_MONITOR_* environment variables.
var Arguments = charmer.Arguments{
	"debug":               {Default: false, Help: "Log debug messages"},
	"adax.url":            {Default: adax.DefaultURL, Help: "Adax API URL"},
	"adax.token":          {Default: "", Help: "Adax API bearer token"},
	"adax.clientID":       {Default: "", Help: "Adax account id"},
	"adax.clientPassword": {Default: "", Help: "Adax API credential"},
	"adax.roomID":         {Default: 0, Help: "Only monitor this room (0: all rooms)"},
	"adax.name":           {Default: "", Help: "Name of the room selected by adax.roomID"},
	"adax.timeout":        {Default: adax.DefaultTimeout, Help: "Timeout for Adax API calls"},
	"poller.interval":     {Default: time.Minute, Help: "Poller interval"},
	"exporter.addr":       {Default: ":9090", Help: "Address of Prometheus exporter"},
	"http.addr":           {Default: ":8080", Help: "Address of /health endpoint and REST API"},
	"mqtt.broker":         {Default: "", Help: "MQTT broker URL (blank: MQTT disabled)"},
	"mqtt.clientID":       {Default: "adax-monitor", Help: "MQTT client id"},
	"mqtt.username":       {Default: "", Help: "MQTT username"},
	"mqtt.password":       {Default: "", Help: "MQTT password"},
	"mqtt.topic":          {Default: "adax", Help: "MQTT topic prefix"},
	"slack.token":         {Default: "", Help: "Slack token (blank: Slack notifications disabled)"},
	"slack.channel":       {Default: "", Help: "Slack channel (blank: all joined channels)"},
}

// SetDefaults registers the default value of each argument with v.
func SetDefaults(v *viper.Viper, args charmer.Arguments) {
	for key, arg := range args {
		v.SetDefault(key, arg.Default)
	}
}

type Configuration struct {
	Debug    bool
	Adax     AdaxConfiguration
	Poller   PollerConfiguration
	Exporter ExporterConfiguration
	HTTP     HTTPConfiguration
	MQTT     mqttbridge.Config
	Slack    SlackConfiguration
}

type AdaxConfiguration struct {
	URL            string
	Token          string
	ClientID       string
	ClientPassword string
	RoomID         int
	Name           string
	Timeout        time.Duration
}

type PollerConfiguration struct {
	Interval time.Duration
}

type ExporterConfiguration struct {
	Addr string
}

type HTTPConfiguration struct {
	Addr string
}

type SlackConfiguration struct {
	Token   string
	Channel string
}

// Load returns the configuration held by v. The configuration is validated.
func Load(v *viper.Viper) (Configuration, error) {
	cfg := Configuration{
		Debug: v.GetBool("debug"),
		Adax: AdaxConfiguration{
			URL:            v.GetString("adax.url"),
			Token:          v.GetString("adax.token"),
			ClientID:       v.GetString("adax.clientID"),
			ClientPassword: v.GetString("adax.clientPassword"),
			RoomID:         v.GetInt("adax.roomID"),
			Name:           v.GetString("adax.name"),
			Timeout:        v.GetDuration("adax.timeout"),
		},
		Poller:   PollerConfiguration{Interval: v.GetDuration("poller.interval")},
		Exporter: ExporterConfiguration{Addr: v.GetString("exporter.addr")},
		HTTP:     HTTPConfiguration{Addr: v.GetString("http.addr")},
		MQTT: mqttbridge.Config{
			Broker:   v.GetString("mqtt.broker"),
			ClientID: v.GetString("mqtt.clientID"),
			Username: v.GetString("mqtt.username"),
			Password: v.GetString("mqtt.password"),
			Topic:    v.GetString("mqtt.topic"),
		},
		Slack: SlackConfiguration{
			Token:   v.GetString("slack.token"),
			Channel: v.GetString("slack.channel"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate checks that the configuration can be used.
func (c Configuration) Validate() error {
	var errs []error
	if !c.Credentials().Valid() {
		errs = append(errs, fmt.Errorf("adax: %w: set adax.token, or adax.clientID and adax.clientPassword", adax.ErrNoCredentials))
	}
	if c.Adax.URL == "" {
		errs = append(errs, errors.New("adax.url: missing"))
	}
	if c.Adax.RoomID < 0 {
		errs = append(errs, fmt.Errorf("adax.roomID: invalid room id %d", c.Adax.RoomID))
	}
	if c.Adax.Name != "" && c.Adax.RoomID == 0 {
		errs = append(errs, errors.New("adax.name: requires adax.roomID"))
	}
	if c.Poller.Interval <= 0 {
		errs = append(errs, errors.New("poller.interval: must be positive"))
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		errs = append(errs, errors.New("mqtt.topic: missing"))
	}
	return errors.Join(errs...)
}

// Credentials returns the credentials to authenticate with the Adax API.
func (c Configuration) Credentials() adax.Credentials {
	return adax.Credentials{
		Token:          c.Adax.Token,
		ClientID:       c.Adax.ClientID,
		ClientPassword: c.Adax.ClientPassword,
	}
}

// Filter returns the discovery filter selected by the configuration.
func (c Configuration) Filter() discovery.Filter {
	return discovery.Filter{RoomID: c.Adax.RoomID, Name: c.Adax.Name}
}
