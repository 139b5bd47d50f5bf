// Bgbridge — entry point.
//
// This tool bridges a browser-based Game Boy emulator (WebSocket) to the BGB
// desktop emulator's link-cable protocol (TCP), so a web client can play
// real link-cable multiplayer against BGB.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-bgbHost, -bgbPort, -wsPort, -debug).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/webgb/bgbridge/internal/config"
	"github.com/webgb/bgbridge/internal/server"
	"github.com/webgb/bgbridge/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bgbHost := flag.String("bgbHost", "127.0.0.1", "BGB emulator host")
	bgbPort := flag.Int("bgbPort", 8765, "BGB link-cable listen port, 1~65535")
	wsPort := flag.Int("wsPort", 8767, "WebSocket port for the browser, 1~65535")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log := util.ComponentLogger("main")

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("bgbridge — v%s", version))
	pterm.Println()

	cfg := config.Default()
	cfg.BGBHost = *bgbHost
	cfg.Verbose.Store(*debugMode)

	if flag.NFlag() == 0 {
		// No flags → interactive mode.
		cfg.BGBPort = askPort("BGB link-cable port (1 ~ 65535)")
		cfg.WSPort = askPort("WebSocket port for the browser (1 ~ 65535)")
	} else {
		if *bgbPort < 1 || *bgbPort > 65535 {
			log.Error().Int("port", *bgbPort).Msg("invalid -bgbPort (must be 1~65535)")
			os.Exit(1)
		}
		if *wsPort < 1 || *wsPort > 65535 {
			log.Error().Int("port", *wsPort).Msg("invalid -wsPort (must be 1~65535)")
			os.Exit(1)
		}
		cfg.BGBPort = *bgbPort
		cfg.WSPort = *wsPort
	}

	util.StartStatsReporter(ctx)

	pterm.Success.Printfln("bridge starting — browser ws://localhost:%d/ws ⇄ BGB %s:%d",
		cfg.WSPort, cfg.BGBHost, cfg.BGBPort)
	pterm.Println()

	if err := server.New(cfg).Run(ctx); err != nil {
		log.Error().Err(err).Msg("bridge failed")
		os.Exit(1)
	}

	log.Info().Msg("bridge shut down")
}

// askPort prompts the user for a port number until a valid one is entered.
func askPort(prompt string) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && port >= 1 && port <= 65535 {
			pterm.Println()
			return port
		}

		pterm.Warning.Println("invalid port number: must be 1 ~ 65535")
		pterm.Println()
	}
}
