package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadEnv loads a .env file into the process environment, matching the
// godotenv.Load pattern used in the pack's exchange-client tests. A
// missing file is not an error: venue credentials may also arrive from a
// real environment (container secrets, systemd EnvironmentFile).
func LoadEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		log.Debug().Str("path", path).Msg("no .env file loaded, relying on process environment")
	}
}

// VenueCredentialsFromEnv merges CoinEx and AscendEX API credentials from
// the environment, per spec §6. Credentials are deliberately excluded
// from the YAML document (see VenueCredentials's yaml:"-" tags) so they
// never round-trip through Store.Update's persisted writes.
func VenueCredentialsFromEnv() VenueCredentials {
	return VenueCredentials{
		CoinExAccessID:   os.Getenv("COINEX_ACCESS_ID"),
		CoinExSecretKey:  os.Getenv("COINEX_SECRET_KEY"),
		AscendExAccessID: os.Getenv("ASCENDEX_ACCESS_ID"),
		AscendExSecret:   os.Getenv("ASCENDEX_SECRET_KEY"),
	}
}
