package config

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	LogZapMode               string `mapstructure:"LOG_ZAP_MODE"`
	PrintConfigurationToLogs string `mapstructure:"PRINT_CONFIGURATION_TO_LOGS"`

	RpcHost string `mapstructure:"RPC_HOST"`
	WsHost  string `mapstructure:"WS_HOST"`

	HistoryApiUrl  string `mapstructure:"HISTORY_API_URL"`
	HistoryApiKey  string `mapstructure:"HISTORY_API_KEY"`
	MetadataApiUrl string `mapstructure:"METADATA_API_URL"`

	PostgresDsn   string `mapstructure:"POSTGRES_DSN"`
	ClickhouseDsn string `mapstructure:"CLICKHOUSE_DSN"`

	WebhookAddr string `mapstructure:"WEBHOOK_ADDR"`
	MetricsAddr string `mapstructure:"METRICS_ADDR"`

	LookbackHours uint64 `mapstructure:"LOOKBACK_HOURS"`
}

var lock = &sync.Mutex{}
var config *Config

var Get = get

func get() Config {
	if config == nil {
		lock.Lock()
		defer lock.Unlock()
		if config == nil {
			c := loadConfig()
			config = &c
		}
	}
	return *config
}

func loadConfig() Config {
	viperAddConfigFile()
	viperAddEnv()
	viperSetDefaults()
	cfg := initializeCfg()
	debugConfig(cfg)
	return cfg
}

func viperAddConfigFile() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("env")
}

func viperAddEnv() {
	viper.AutomaticEnv()
	// This makes sure that all envs are binded even if they are not represented in config file (https://github.com/spf13/viper/issues/584)
	valueOfConfig := reflect.ValueOf(&Config{}).Elem()
	fieldsOfConfig := reflect.TypeOf(&Config{}).Elem()
	for i := 0; i < valueOfConfig.NumField(); i++ {
		field, _ := fieldsOfConfig.FieldByName(valueOfConfig.Type().Field(i).Name)
		mapStructureVal := field.Tag.Get("mapstructure")
		err := viper.BindEnv(mapStructureVal)
		if err != nil {
			panic(fmt.Sprintf("Error binding env val '%v': %v", mapStructureVal, err))
		}
	}
}

func viperSetDefaults() {
	viper.SetDefault("WEBHOOK_ADDR", ":8080")
	viper.SetDefault("METRICS_ADDR", ":9090")
	viper.SetDefault("LOOKBACK_HOURS", 730)
}

func initializeCfg() Config {
	var cfg Config
	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		} else {
			panic(fmt.Sprintf("fatal error reading config file: %v", err))
		}
	}

	err = viper.Unmarshal(&cfg)
	if err != nil {
		panic(fmt.Sprintf("error unmarshaling config: %v", err))
	}
	return cfg
}

func debugConfig(cfg Config) {
	if cfg.PrintConfigurationToLogs == "true" {
		b, err := json.Marshal(cfg)
		var result string
		if err != nil {
			result = "[FAILED TO CONVERT CONF TO STRING]"
		} else {
			result = string(b)
		}
		log.Printf("[APP CONFIGURATION]: %v\n", result)
	}
}
