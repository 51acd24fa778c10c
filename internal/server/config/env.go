package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/gophxfer/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every relay environment variable, e.g. XFER_SERVER_TTL.
const EnvPrefix = "XFER_SERVER_"

const defaultEnvFile = ".env"

// parseEnv loads the dotenv file named by -envfile (or ./.env when it
// exists) and then overlays XFER_SERVER_* variables onto config. Variables
// already present in the process environment win over the file. A missing
// default file is ignored; any other failure panics.
func parseEnv(config *Config) {
	file := flagx.EnvFileFlag()
	explicit := file != ""
	if !explicit {
		file = defaultEnvFile
	}

	if err := godotenv.Load(file); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
