package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session/cmd/sessionctl/internal/commands"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logger"
	"github.com/rs/zerolog/log"
)

var (
	version = "dev"
	cli     struct {
		Config    string                `help:"Path to a YAML config file" type:"path" env:"SESSION_CONFIG"`
		Debug     bool                  `help:"Enable debug logging."`
		Status    commands.StatusCmd    `cmd:"" help:"Show the current session"`
		Login     commands.LoginCmd     `cmd:"" help:"Sign in with email and password"`
		VerifyMFA commands.VerifyMFACmd `cmd:"" name:"verify-mfa" help:"Answer an MFA challenge"`
		Register  commands.RegisterCmd  `cmd:"" help:"Create an account"`
		Logout    commands.LogoutCmd    `cmd:"" help:"Sign out and remove local credentials"`
		Pin       commands.PinCmd       `cmd:"" help:"Manage the fallback PIN"`
		Biometry  commands.BiometryCmd  `cmd:"" help:"Manage biometric unlock"`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("sessionctl"),
		kong.Description("Manage the local authenticated session."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	c, err := config.Load(cli.Config)
	cmd.FatalIfErrorf(err)

	level := c.GetLogLevel()
	if cli.Debug {
		level = "debug"
	}
	log.Logger = logger.Setup(level, c.GetLogPretty())

	if cmd.Command() == "status" {
		displayAppname(c.GetAppName())
	}

	manager, err := commands.NewSessionManager(ctx, c)
	cmd.FatalIfErrorf(err)

	err = cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Version: version,
		Manager: manager,
		In:      os.Stdin,
		Out:     os.Stdout,
	})
	cmd.FatalIfErrorf(err)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
