package config

import (
	"os"
	"strconv"
)

// ApplyEnv overlays environment variables onto a loaded config.
// Unset variables leave the file/default values untouched.
func ApplyEnv(c *Config) {
	if v := os.Getenv("FOCUSFLOW_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FOCUSFLOW_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("FOCUSFLOW_REMOTE_STORE_URL"); v != "" {
		c.Storage.RemoteBaseURL = v
	}
	if v := os.Getenv("FOCUSFLOW_CALENDAR_URL"); v != "" {
		c.Calendar.BaseURL = v
	}
	if v := getEnvInt("FOCUSFLOW_MAX_SESSIONS"); v > 0 {
		c.Server.MaxSessions = v
	}
	if v := getEnvInt("FOCUSFLOW_DAILY_LIMIT"); v > 0 {
		c.Tasks.DailyLimit = v
	}
	if v := getEnvInt("FOCUSFLOW_STATS_RETAIN_MONTHS"); v > 0 {
		c.Stats.RetainMonths = v
	}
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}
