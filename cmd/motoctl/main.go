package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-moto-client/client"
	"github.com/jrsteele09/go-moto-client/internal/config"
	"github.com/jrsteele09/go-moto-client/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const usage = `usage: motoctl [--config file] <command> [arguments]

commands:
  login       sign in and store the session
  logout      drop the stored session
  status      show the session and API health
  motorcycles list | featured | get <id>
  parts       list | categories | search <text>
  export      write the inventory to an XLSX file
  otp         request <email> | verify <email> <code> | confirm <email> <code> <new password>
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "motoctl: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	flags := pflag.NewFlagSet("motoctl", pflag.ContinueOnError)
	configFile := flags.String("config", "", "configuration file (yaml, json or toml)")
	flags.SetInterspersed(false)
	flags.Usage = func() { fmt.Fprint(out, usage) }
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		c := config.New()
		displayAppname(c.GetAppName())
		flags.Usage()
		return nil
	}

	c, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	log.Logger = logging.New(os.Stderr, c.GetEnv(), c.GetLogLevel())

	moto, err := client.New(c)
	if err != nil {
		return err
	}
	defer moto.Close()
	if err := moto.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &commands{client: moto, out: out}
	return cmd.dispatch(ctx, flags.Arg(0), flags.Args()[1:])
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
