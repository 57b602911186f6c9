package config

import (
	"os"
	"strconv"
	"strings"
)

// envKeyReplacer maps nested keys to env names: graph.top_k -> REPLYGRAPH_GRAPH_TOP_K
var envKeyReplacer = strings.NewReplacer(".", "_")

// Helper functions for type-safe environment variable access

// GetString returns string value or default
func GetString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// GetInt returns int value or default
func GetInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// GetFloat returns float value or default
func GetFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

// GetBool returns bool value or default
func GetBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
