package config

import "os"

func IsDebug() bool {
	return os.Getenv("MYTHIC_DEBUG") == "1"
}

func IsJSONLog() bool {
	return os.Getenv("LOG_FORMAT") == "json"
}
