package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-moto-client/internal/apitest"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupTestFixture(t *testing.T) (*apitest.Env, *commands, *bytes.Buffer) {
	t.Helper()
	env := apitest.New(t)
	env.API.SeedMotorcycle(map[string]any{"brand": "Ducati", "model": "Monster", "year": 2021, "price": "9500"})
	env.API.SeedPart(map[string]any{"name": "Brake pads", "brand": "Brembo", "price": "45", "stock": 2, "is_available": true})
	var out bytes.Buffer
	return env, &commands{client: env.Client, out: &out}, &out
}

func TestCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("login and logout", func(t *testing.T) {
		_, cmd, out := setupTestFixture(t)
		require.NoError(t, cmd.dispatch(ctx, "login", []string{"-u", apitest.AdminName, "-p", apitest.AdminPassword}))
		require.Contains(t, out.String(), "logged in until")

		require.NoError(t, cmd.dispatch(ctx, "status", nil))
		require.Contains(t, out.String(), "session: active")
		require.Contains(t, out.String(), "api: healthy")
		require.Contains(t, out.String(), "version: 1.0.0")

		require.NoError(t, cmd.dispatch(ctx, "logout", nil))
		out.Reset()
		require.NoError(t, cmd.dispatch(ctx, "status", nil))
		require.Contains(t, out.String(), "session: logged out")
	})

	t.Run("listing", func(t *testing.T) {
		_, cmd, out := setupTestFixture(t)
		require.NoError(t, cmd.dispatch(ctx, "motorcycles", []string{"list"}))
		require.Contains(t, out.String(), "Monster")

		out.Reset()
		require.NoError(t, cmd.dispatch(ctx, "motorcycles", []string{"get", "1"}))
		require.Contains(t, out.String(), "Ducati Monster (2021)")

		out.Reset()
		require.NoError(t, cmd.dispatch(ctx, "parts", []string{"search", "brake"}))
		require.Contains(t, out.String(), "Brake pads")

		require.Error(t, cmd.dispatch(ctx, "motorcycles", []string{"get"}))
		require.Error(t, cmd.dispatch(ctx, "boats", nil))
	})

	t.Run("export", func(t *testing.T) {
		_, cmd, out := setupTestFixture(t)
		path := filepath.Join(t.TempDir(), "stock.xlsx")
		require.NoError(t, cmd.dispatch(ctx, "export", []string{"-o", path}))
		require.Contains(t, out.String(), "wrote 1 motorcycles and 1 parts")

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer f.Close()
		require.Len(t, f.GetSheetList(), 2)
	})
}
