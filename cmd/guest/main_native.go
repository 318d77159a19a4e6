//go:build !wasip1

// Command guest is the script bridge plugin. It only runs inside a WASM
// host; build it with GOOS=wasip1 GOARCH=wasm -buildmode=c-shared.
package main

import (
	"github.com/rs/zerolog/log"

	"github.com/andrei-cloud/go_scriptbridge/internal/logging"
)

func main() {
	logging.InitLogger(false, true)
	log.Fatal().
		Str("event", "wrong_target").
		Msg("guest must be built with GOOS=wasip1 GOARCH=wasm -buildmode=c-shared and run by scriptbridge")
}
