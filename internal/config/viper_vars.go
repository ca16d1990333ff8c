package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

const (
	appNameKey        = "app.name"
	envKey            = "app.environment"
	devModeKey        = "app.dev_mode"
	dataFolderKey     = "storage.data_folder"
	baseURLKey        = "api.base_url"
	requestTimeoutKey = "api.request_timeout"
)

type viperVars struct {
	v *viper.Viper
}

var _ Config = viperVars{}

func newViperVars() viperVars {
	v := viper.New()
	v.SetConfigName("capsule-client")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "capsule-client"))
	}

	v.SetEnvPrefix("CAPSULE")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	v.SetDefault(appNameKey, "Capsule Client")
	v.SetDefault(envKey, "DEV")
	v.SetDefault(devModeKey, false)
	v.SetDefault(dataFolderKey, defaultDataFolder())
	v.SetDefault(baseURLKey, "https://noar-health-api-dev.azurewebsites.net")
	v.SetDefault(requestTimeoutKey, 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Err(err).Msg("Failed to read config file, using defaults")
		}
	}

	return viperVars{v: v}
}

func (c viperVars) GetAppName() string {
	return c.v.GetString(appNameKey)
}

func (c viperVars) GetEnv() string {
	return c.v.GetString(envKey)
}

func (c viperVars) GetDevMode() bool {
	return c.v.GetBool(devModeKey)
}

func (c viperVars) GetDataFolder() string {
	return c.v.GetString(dataFolderKey)
}

func (c viperVars) GetBaseURL() string {
	return c.v.GetString(baseURLKey)
}

func (c viperVars) GetRequestTimeout() time.Duration {
	return c.v.GetDuration(requestTimeoutKey)
}

func defaultDataFolder() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "capsule-client")
}
