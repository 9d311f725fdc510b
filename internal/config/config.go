package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string `yaml:"env" env-default:"local"`
	Telegram struct {
		ApiKey  string `yaml:"api_key" env-default:""`
		AdminId int64  `yaml:"admin_id" env-default:"0"`
		BotName string `yaml:"bot_name" env-default:"BizLinkBot"`
		Enabled bool   `yaml:"enabled" env-default:"false"`
	} `yaml:"telegram"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env-default:"pass"`
		Database string `yaml:"database" env-default:"bizlink"`
	} `yaml:"mongo"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"6379"`
		Password string `yaml:"password" env-default:""`
		DB       int    `yaml:"db" env-default:"0"`
	} `yaml:"redis"`
	Chat struct {
		SendRetries    int           `yaml:"send_retries" env-default:"3"`
		BackoffStep    time.Duration `yaml:"backoff_step" env-default:"1s"`
		RefreshTimeout time.Duration `yaml:"refresh_timeout" env-default:"15s"`
		MessageWindow  int           `yaml:"message_window" env-default:"50"`
		CacheTTL       time.Duration `yaml:"cache_ttl" env-default:"24h"`
		SweepCron      string        `yaml:"sweep_cron" env-default:"0 3 * * *"`
		SweepInterval  time.Duration `yaml:"sweep_interval" env-default:"24h"`
		PingInterval   time.Duration `yaml:"ping_interval" env-default:"10s"`
	} `yaml:"chat"`
	Files struct {
		Secret string        `yaml:"secret" env-default:""`
		TTL    time.Duration `yaml:"ttl" env-default:"1h"`
	} `yaml:"files"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env-default:"9200"`
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
