package main

import "time"

type Config struct {
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN,required=true"`
	TelegramChatID   int64         `env:"TELEGRAM_CHAT_ID,required=true"`
	BotName          string        `env:"BOT_NAME,default=chat-relay"`
	CooldownWindow   time.Duration `env:"COOLDOWN_WINDOW,default=30s"`
	StalenessBound   time.Duration `env:"STALENESS_BOUND,default=10m"`
	DeliveryTimeout  time.Duration `env:"DELIVERY_TIMEOUT,default=10s"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,default=5s"`
	HealthInterval   time.Duration `env:"HEALTH_INTERVAL,default=30s"`
	BufferSize       int           `env:"BUFFER_SIZE,default=256"`
	BadgerFilepath   string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath    string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel         string        `env:"LOG_LEVEL,default=info"`
	Host             string        `env:"HOST,default=localhost"`
	Port             int           `env:"PORT,default=8080"`
	RelayToken       string        `env:"RELAY_TOKEN"`
}
