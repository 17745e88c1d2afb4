package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/go-moto-client/client"
	"github.com/jrsteele09/go-moto-client/export"
	"github.com/jrsteele09/go-moto-client/parts"
	"github.com/jrsteele09/go-moto-client/session"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// passwordEnv lets scripts log in without the password showing up in the process list.
const passwordEnv = "MOTO_PASSWORD"

type commands struct {
	client *client.Client
	out    io.Writer
}

func (c *commands) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "login":
		return c.login(ctx, args)
	case "logout":
		c.client.Logout()
		fmt.Fprintln(c.out, "logged out")
		return nil
	case "status":
		return c.status(ctx)
	case "motorcycles":
		return c.motorcycles(ctx, args)
	case "parts":
		return c.parts(ctx, args)
	case "export":
		return c.export(ctx, args)
	case "otp":
		return c.otp(ctx, args)
	default:
		return errors.Errorf("unknown command %q", name)
	}
}

func (c *commands) login(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
	username := flags.StringP("username", "u", "", "admin username, when the API has several admins")
	password := flags.StringP("password", "p", os.Getenv(passwordEnv), "password (default $"+passwordEnv+")")
	if err := flags.Parse(args); err != nil {
		return err
	}

	sess, err := c.client.Login(ctx, session.Credentials{Username: *username, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "logged in until %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func (c *commands) status(ctx context.Context) error {
	if sess, ok := c.client.Session(); ok {
		fmt.Fprintf(c.out, "session: active, access token expires %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))
	} else {
		fmt.Fprintln(c.out, "session: logged out")
	}

	health, err := c.client.Health(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "api: %s\n", err)
		return nil
	}
	fmt.Fprintf(c.out, "api: %s (%s)\n", health.Status, health.Message)

	info, err := c.client.CheckCompatibility(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "version: %s\n", err)
		return nil
	}
	fmt.Fprintf(c.out, "version: %s\n", info.Version)
	return nil
}

func (c *commands) motorcycles(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("motorcycles: expected list, featured or get <id>")
	}
	svc := c.client.Motorcycles
	switch args[0] {
	case "list", "featured":
		fetch := svc.List
		if args[0] == "featured" {
			fetch = svc.Featured
		}
		list, err := fetch(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBRAND\tMODEL\tYEAR\tPRICE\tSOLD")
		for _, m := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%t\n", m.ID, m.Brand, m.Model, m.Year, m.Price, m.IsSold)
		}
		return w.Flush()
	case "get":
		if len(args) != 2 {
			return errors.New("motorcycles get: expected an id")
		}
		m, err := svc.Get(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s %s (%d)\nprice: %s\nmileage: %d km\nengine: %s\ncolor: %s\n",
			m.Brand, m.Model, m.Year, m.Price, m.Mileage, m.Engine, m.Color)
		if img, ok := m.PrimaryImage(); ok {
			fmt.Fprintf(c.out, "image: %s\n", img.Image)
		}
		return nil
	default:
		return errors.Errorf("motorcycles: unknown action %q", args[0])
	}
}

func (c *commands) parts(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("parts: expected list, categories or search <text>")
	}
	svc := c.client.Parts
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	switch args[0] {
	case "categories":
		cats, err := svc.Categories(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tSLUG\tNAME")
		for _, cat := range cats {
			fmt.Fprintf(w, "%d\t%s\t%s\n", cat.ID, cat.Slug, cat.Name)
		}
		return w.Flush()
	case "list", "search":
		var (
			list []parts.Part
			err  error
		)
		if args[0] == "search" {
			if len(args) != 2 {
				return errors.New("parts search: expected the text to search for")
			}
			list, err = svc.Search(ctx, args[1])
		} else {
			list, err = svc.List(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tNAME\tBRAND\tPRICE\tIN STOCK")
		for _, p := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", p.ID, p.Name, p.Brand, p.Price, p.InStock())
		}
		return w.Flush()
	default:
		return errors.Errorf("parts: unknown action %q", args[0])
	}
}

func (c *commands) export(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("export", pflag.ContinueOnError)
	output := flags.StringP("output", "o", "inventory-"+time.Now().Format("20060102")+".xlsx", "file to write")
	if err := flags.Parse(args); err != nil {
		return err
	}

	bikes, err := c.client.Motorcycles.List(ctx)
	if err != nil {
		return err
	}
	items, err := c.client.Parts.List(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(*output)
	if err != nil {
		return errors.Wrap(err, "[export]")
	}
	if err := export.WriteInventory(f, bikes, items); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "[export]")
	}
	fmt.Fprintf(c.out, "wrote %d motorcycles and %d parts to %s\n", len(bikes), len(items), *output)
	return nil
}

func (c *commands) otp(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("otp: expected request, verify or confirm")
	}
	switch {
	case args[0] == "request" && len(args) == 2:
		msg, err := c.client.RequestOTP(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, msg.Message)
	case args[0] == "verify" && len(args) == 3:
		msg, err := c.client.VerifyOTP(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, msg.Message)
	case args[0] == "confirm" && len(args) == 4:
		if _, err := c.client.ConfirmOTP(ctx, args[1], args[2], args[3]); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "password changed, logged in")
	default:
		return errors.Errorf("otp: bad arguments %q", args)
	}
	return nil
}
