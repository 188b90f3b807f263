// Package main provides the entry point for the audio captcha.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/Raikerian/go-audio-captcha/internal/app"
	"github.com/Raikerian/go-audio-captcha/internal/captcha"
	"github.com/Raikerian/go-audio-captcha/internal/console"
	"github.com/Raikerian/go-audio-captcha/internal/effects"
	"github.com/Raikerian/go-audio-captcha/internal/httpapi"
	"github.com/Raikerian/go-audio-captcha/internal/metrics"
	"github.com/Raikerian/go-audio-captcha/internal/output"
	"github.com/Raikerian/go-audio-captcha/internal/render"
)

// version is set at build time with -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:    "audio-captcha",
		Usage:   "Spoken-digit captcha scrambled with filters, distortion and noise",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				EnvVars: []string{"CAPTCHA_CONFIG"},
				Usage:   "path to the YAML configuration file",
			},
		},
		Commands: []*cli.Command{
			newConsoleCmd(),
			newServeCmd(),
			newRenderCmd(),
		},
		Action: runConsole,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newConsoleCmd() *cli.Command {
	return &cli.Command{
		Name:   "console",
		Usage:  "Play captchas through the speaker and answer them interactively",
		Action: runConsole,
	}
}

func runConsole(c *cli.Context) error {
	application := app.New(
		app.Core(c.String("config")),
		effects.Module,
		captcha.Module,
		output.Module,
		metrics.Module,
		metrics.TrackSession,
		console.Module,
	)
	if err := application.Err(); err != nil {
		return err
	}

	application.Run()
	return nil
}

func newServeCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve captchas as WAV files over HTTP",
		Action: func(c *cli.Context) error {
			application := app.New(
				app.Core(c.String("config")),
				render.Module,
				metrics.Module,
				httpapi.Module,
			)
			if err := application.Err(); err != nil {
				return err
			}

			application.Run()
			return nil
		},
	}
}

func newRenderCmd() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Write one scrambled pass of a new captcha to a WAV file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   "captcha.wav",
				Usage:   "output WAV file",
			},
			&cli.IntFlag{
				Name:    "length",
				Aliases: []string{"n"},
				Usage:   "number of digits (0 uses captcha.token_length)",
			},
			&cli.BoolFlag{
				Name:  "reveal",
				Usage: "print the token, for development",
			},
		},
		Action: runRender,
	}
}

func runRender(c *cli.Context) error {
	var factory *render.Factory

	application := app.New(
		app.Core(c.String("config")),
		render.Module,
		fx.Populate(&factory),
	)
	if err := application.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()

	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = application.Stop(context.Background()) }()

	if err := factory.Bank().Wait(ctx); err != nil {
		return errors.Join(captcha.ErrAssetsMissing, err)
	}

	rig, err := factory.New()
	if err != nil {
		return err
	}
	if err := rig.Session().Generate(c.Int("length")); err != nil {
		return err
	}

	f, err := os.Create(c.String("out"))
	if err != nil {
		return err
	}

	length, err := rig.RenderPass(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d digits, %s)\n", c.String("out"), rig.Session().TokenLength(), length.Round(time.Millisecond))
	if c.Bool("reveal") {
		fmt.Printf("Captcha token (for dev): %s\n", rig.Session().Token())
	}
	return nil
}
