package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
)

// PollWindow sets the poll interval for hours in [From, To).
type PollWindow struct {
	From    int `yaml:"from"`
	To      int `yaml:"to"`
	Seconds int `yaml:"seconds"`
}

// Provider holds the settings of one reservation provider integration and its bot.
type Provider struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	BotName  string `yaml:"bot_name" env-default:""`
	BotToken string `yaml:"bot_token" env-default:""`
	BaseURL  string `yaml:"base_url" env-default:""`
	ApiKey   string `yaml:"api_key" env-default:""`
	Token    string `yaml:"token" env-default:""`
	City     string `yaml:"city" env-default:""`

	// QueryHash is the persisted GraphQL query hash used by OpenTable.
	QueryHash string `yaml:"query_hash" env-default:""`
	Timeout   int    `yaml:"timeout_seconds" env-default:"20"`
}

type Config struct {
	Env      string `yaml:"env" env-default:"local"`
	Telegram struct {
		ApiKey  string `yaml:"api_key" env-default:""`
		AdminId int64  `yaml:"admin_id" env-default:"0"`
		BotName string `yaml:"bot_name" env-default:"TableWatchAdminBot"`
		Enabled bool   `yaml:"enabled" env-default:"false"`
	} `yaml:"telegram"`
	Resy      Provider `yaml:"resy"`
	OpenTable Provider `yaml:"opentable"`
	Watch     struct {
		MaxSubscriptions     int          `yaml:"max_subscriptions" env-default:"3"`
		ExpirationHours      int          `yaml:"expiration_hours" env-default:"72"`
		DayStartHour         int          `yaml:"day_start_hour" env-default:"9"`
		DayEndHour           int          `yaml:"day_end_hour" env-default:"22"`
		Timezone             string       `yaml:"timezone" env-default:"Europe/Kyiv"`
		RestaurantCacheHours int          `yaml:"restaurant_cache_hours" env-default:"24"`
		PollSchedule         []PollWindow `yaml:"poll_schedule"`
	} `yaml:"watch"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env-default:"pass"`
		Database string `yaml:"database" env-default:"tablewatch"`
	} `yaml:"mongo"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env-default:"9100"`
		ApiKey string `yaml:"key" env-default:""`
	} `yaml:"listen"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("%s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
