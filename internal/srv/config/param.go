package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"time"
)

//go:embed param_default.yaml
var ParamDefaultFile []byte

const (
	WAVESHARE_7IN5_V2_DRIVER = "waveshare7in5v2"
	INKY_DRIVER              = "inky"
	SIMULATION_DRIVER        = "simulation"

	GPIO_BUTTONS_DRIVER  = "gpio"
	EVDEV_BUTTONS_DRIVER = "evdev"
	NO_BUTTONS_DRIVER    = "none"
)

type ServerParam struct {
	ServerUrl         string        `yaml:"server_url"`
	HttpTimeout       time.Duration `yaml:"http_timeout"`
	UpdateInterval    time.Duration `yaml:"update_interval"`
	AppSwitchInterval time.Duration `yaml:"app_switch_interval"`
	LogFile           string        `yaml:"log_file"`
	ShowSplash        bool          `yaml:"show_splash"`
	DisplayParam      DisplayParam  `yaml:"display"`
	ButtonsParam      ButtonsParam  `yaml:"buttons"`
	ApiParam          ApiParam      `yaml:"api"`
}

type DisplayParam struct {
	Driver     string `yaml:"driver"`
	SpiPort    string `yaml:"spi_port"`
	SpiSpeedHz int64  `yaml:"spi_speed_hz"`
	RstPin     string `yaml:"rst_pin"`
	DcPin      string `yaml:"dc_pin"`
	CsPin      string `yaml:"cs_pin"`
	BusyPin    string `yaml:"busy_pin"`
	PwrPin     string `yaml:"pwr_pin"`
	Rotation   int    `yaml:"rotation"`
	InkyModel  string `yaml:"inky_model"`
	InkyColor  string `yaml:"inky_color"`
}

type ButtonsParam struct {
	Driver      string        `yaml:"driver"`
	LeftPin     string        `yaml:"left_pin"`
	RightPin    string        `yaml:"right_pin"`
	Debounce    time.Duration `yaml:"debounce"`
	EvdevDevice string        `yaml:"evdev_device"`
	LeftKey     uint16        `yaml:"left_key"`
	RightKey    uint16        `yaml:"right_key"`
}

type ApiParam struct {
	Enabled bool   `yaml:"enabled"`
	SslPort int64  `yaml:"ssl_port"`
	ApiKey  string `yaml:"api_key"`
}

func (p *ServerParam) Validate() error {
	u, err := url.Parse(p.ServerUrl)
	if err != nil {
		return fmt.Errorf("invalid server_url %q: %w", p.ServerUrl, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url %q must be an absolute http(s) url", p.ServerUrl)
	}

	for name, d := range map[string]time.Duration{
		"http_timeout":        p.HttpTimeout,
		"update_interval":     p.UpdateInterval,
		"app_switch_interval": p.AppSwitchInterval,
		"buttons.debounce":    p.ButtonsParam.Debounce,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}

	switch p.DisplayParam.Driver {
	case WAVESHARE_7IN5_V2_DRIVER, INKY_DRIVER, SIMULATION_DRIVER:
	default:
		return fmt.Errorf("unknown display driver %q", p.DisplayParam.Driver)
	}
	switch p.DisplayParam.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("display rotation must be 0, 90, 180 or 270, got %d", p.DisplayParam.Rotation)
	}

	switch p.ButtonsParam.Driver {
	case GPIO_BUTTONS_DRIVER, EVDEV_BUTTONS_DRIVER, NO_BUTTONS_DRIVER:
	default:
		return fmt.Errorf("unknown buttons driver %q", p.ButtonsParam.Driver)
	}

	if p.ApiParam.Enabled && p.ApiParam.ApiKey == "" {
		return fmt.Errorf("api.api_key is required when the api is enabled")
	}
	return nil
}
