package garage_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-moto-client/apierror"
	"github.com/jrsteele09/go-moto-client/garage"
	"github.com/jrsteele09/go-moto-client/internal/apitest"
	"github.com/stretchr/testify/require"
)

func TestBusinessHours_IsOpen(t *testing.T) {
	hours := garage.DefaultSettings().BusinessHours
	// 2024-06-03 is a Monday.
	monday := func(hour, minute int) time.Time {
		return time.Date(2024, time.June, 3, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"before opening", monday(8, 59), false},
		{"at opening", monday(9, 0), true},
		{"afternoon", monday(17, 59), true},
		{"at closing", monday(18, 0), false},
		{"saturday afternoon", monday(16, 30).AddDate(0, 0, 5), true},
		{"saturday evening", monday(17, 30).AddDate(0, 0, 5), false},
		{"sunday", monday(12, 0).AddDate(0, 0, 6), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.open, hours.IsOpen(tt.at))
		})
	}
}

func TestOpeningHours(t *testing.T) {
	lines := garage.OpeningHours(garage.DefaultSettings().BusinessHours)
	require.Len(t, lines, 7)
	require.Equal(t, "monday 09:00-18:00", lines[0])
	require.Equal(t, "saturday 09:00-17:00", lines[5])
	require.Equal(t, "sunday closed", lines[6])
}

func TestContactLink(t *testing.T) {
	subject, body := garage.Enquiry("Ducati Monster 2021")
	link := garage.ContactLink(garage.Settings{}, subject, body)
	require.Equal(t, "mailto:contact@agdemoto.fr?subject=Information%20request%20-%20Ducati%20Monster%202021"+
		"&body=Hello%2C%0A%0AI%20am%20interested%20in%20Ducati%20Monster%202021.%0A%0APlease%20contact%20me%20with%20more%20information.%0A%0AKind%20regards", link)

	subject, body = garage.Enquiry("")
	link = garage.ContactLink(garage.Settings{Email: "shop@example.com"}, subject, body)
	require.Contains(t, link, "mailto:shop@example.com?subject=Information%20request&body=")
}

func TestService_Update(t *testing.T) {
	env := apitest.New(t)
	ctx := context.Background()

	settings, err := env.Client.Garage.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, "Agde Moto Gattuso", settings.Name)

	settings.Phone = "04 67 00 00 00"
	_, err = env.Client.Garage.Update(ctx, settings)
	require.Equal(t, apierror.AuthExpired, apierror.KindOf(err))

	env.Login(t)
	settings.BusinessHours.Monday.Open = "9h"
	_, err = env.Client.Garage.Update(ctx, settings)
	require.Equal(t, apierror.ValidationFailed, apierror.KindOf(err))
	require.Contains(t, apierror.FieldsOf(err), "business_hours.monday.open")

	settings.BusinessHours.Monday.Open = "08:30"
	updated, err := env.Client.Garage.Update(ctx, settings)
	require.NoError(t, err)
	require.Equal(t, "08:30", updated.BusinessHours.Monday.Open)

	settings, err = env.Client.Garage.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, "04 67 00 00 00", settings.Phone)
	require.Equal(t, 2, env.API.Calls(http.MethodGet, "/garage/settings/"))
	require.Equal(t, 2, env.API.Calls(http.MethodPut, "/garage/settings/"))
}
