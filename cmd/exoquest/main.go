// Command exoquest serves and runs exoplanet candidate classification.
package main

import (
	"os"

	"github.com/banshee-data/exoquest/internal/config"
)

func main() {
	if err := newRootCmd(config.New()).Execute(); err != nil {
		os.Exit(1)
	}
}
