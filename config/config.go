package config

import (
	"fmt"
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"
)

// Version is reported by --version.
const Version = "0.1.0"

// Stdin is the input value that selects standard input.
const Stdin = "-"

type Config struct {
	// Stages is the total stage count, including the terminal stage.
	Stages int
	// Input is the path of a message file; Stdin reads standard input and an
	// empty value runs the built-in two-point line.
	Input string
	Debug bool
}

// Parse reads the configuration from the command line arguments (without
// the program name), falling back to GEOSTREAM_* environment variables.
func Parse(args []string) (*Config, error) {
	cfg := new(Config)

	app := kingpin.New("geostream", "Run a geometry message stream through a chain of pipeline stages.")
	app.Version(Version)
	app.Flag("stages", "Total number of pipeline stages, including the terminal one.").
		Short('s').Default("3").Envar("GEOSTREAM_STAGES").IntVar(&cfg.Stages)
	app.Flag("input", "Message file to read; --input=- (or -i -) reads stdin.").
		Short('i').Envar("GEOSTREAM_INPUT").PlaceHolder("FILE").StringVar(&cfg.Input)
	app.Flag("debug", "Enable debug logging.").
		Short('d').Envar("GEOSTREAM_DEBUG").BoolVar(&cfg.Debug)

	if _, err := app.Parse(normalizeInput(args)); err != nil {
		return nil, err
	}

	if cfg.Stages < 1 {
		return nil, fmt.Errorf("invalid stage count %d: at least one stage is required", cfg.Stages)
	}
	return cfg, nil
}

// normalizeInput rewrites the input flag into its --input=VALUE form. kingpin
// lexes a bare "-" as a flag and keeps the "=" of "-i=VALUE" in the value.
func normalizeInput(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append(out, args[i:]...)
		case (arg == "-i" || arg == "--input") && i+1 < len(args) && args[i+1] == Stdin:
			out = append(out, "--input="+Stdin)
			i++
		case strings.HasPrefix(arg, "-i="):
			out = append(out, "--input="+strings.TrimPrefix(arg, "-i="))
		default:
			out = append(out, arg)
		}
	}
	return out
}
