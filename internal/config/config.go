package config

import (
	"github.com/spf13/viper"
)

// Global configuration variables
var (
	// AladinTTBKey is the API key for the Aladin TTB API
	AladinTTBKey string
	// GoogleBooksAPIKey is the API key for the Google Books API
	GoogleBooksAPIKey string
	// Headless controls whether browser automation runs headless
	Headless bool
)

// InitConfig initializes the global configuration
func InitConfig() {
	// Set default values
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("browser.headless", true)

	// Get values from viper
	AladinTTBKey = viper.GetString("AladinTTBKey")
	GoogleBooksAPIKey = viper.GetString("GoogleBooksAPIKey")
	Headless = viper.GetBool("browser.headless")
}

// SetHeadless sets the browser automation headless flag
func SetHeadless(headless bool) {
	Headless = headless
	viper.Set("browser.headless", headless)
}
