package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gregLibert/ct-terminal/pkg/ctapi"
	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
	"github.com/gregLibert/ct-terminal/pkg/ctsim"
	"github.com/gregLibert/ct-terminal/pkg/pcsc"
	"github.com/gregLibert/ct-terminal/pkg/tlv"
	"github.com/lmittmann/tint"
)

func initLogger(cfg config) *slog.Logger {
	level := parseLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	configPath := flag.String("config", "", "path to a cardinfo TOML config")
	iface := flag.Int("interface", -1, "port number of the terminal (overrides the config)")
	sim := flag.Bool("sim", false, "use the built-in simulator instead of PC/SC")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *iface >= 0 {
		cfg.Interface = *iface
	}
	if *sim {
		cfg.Transport = "sim"
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := initLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, newTransport(cfg, logger), logger); err != nil {
		logger.Error("cardinfo failed", "err", err)
		os.Exit(1)
	}
}

func newTransport(cfg config, logger *slog.Logger) ctapi.Transport {
	if cfg.Transport == "sim" {
		card := ctsim.NewMemoryCard(tlv.Hex("A2 13 10 91"))
		copy(card.Memory, "cardinfo demo card")
		return ctsim.New(ctsim.WithCard(card))
	}
	return pcsc.New(logger)
}

func run(cfg config, tr ctapi.Transport, logger *slog.Logger) error {
	opts := []ctapi.Option{
		ctapi.WithSlot(ctbcs.Address(cfg.Slot)),
		ctapi.WithChunkSize(cfg.ChunkSize),
		ctapi.WithLogger(logger),
		ctapi.WithTrace(cfg.Trace),
	}

	return ctapi.NewRegistry().With(tr, ctbcs.Port(cfg.Interface), func(t *ctapi.Terminal) error {
		fmt.Printf("Cardterminal: %s\n", t)
		fmt.Printf("Manufacturer: %s\n", t.Manufacturer())

		inserted, err := t.CardInserted()
		if err != nil {
			return err
		}
		if !inserted {
			fmt.Println("Please insert a card into your cardterminal!")
			return nil
		}

		status, err := t.CardStatus()
		if err != nil {
			return err
		}
		fmt.Printf("Card status: %s\n", status)

		card := t.Card()
		if card == nil {
			fmt.Println("The card did not answer to reset.")
			return nil
		}
		fmt.Println(card.Describe())
		fmt.Printf("ATR ok? %v\n", card.OK())

		if info, err := t.FileInfo(); err == nil && info != nil {
			fmt.Println(info.Describe())
		}

		fmt.Printf("Trying to read(0, %d):\n", cfg.ReadSize)
		data, err := t.Read(0, cfg.ReadSize)
		if err != nil {
			return err
		}
		fmt.Printf("Have read %d bytes: %X (%q)\n", len(data), data, tlv.MakeSafeASCII(data))
		return nil
	}, opts...)
}
