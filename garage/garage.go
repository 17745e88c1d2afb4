// Package garage reads and edits the dealership's public settings: contact details, opening
// hours, social links and SEO metadata.
package garage

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/mutation"
	"github.com/jrsteele09/go-moto-client/resource"
	"github.com/jrsteele09/go-moto-client/transport"
)

const (
	settingsPath = "/garage/settings/"
	defaultEmail = "contact@agdemoto.fr"
)

var SettingsKey = cache.Key{"garage-settings"}

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

type Hours struct {
	Open     string `json:"open" validate:"omitempty,datetime=15:04"`
	Close    string `json:"close" validate:"omitempty,datetime=15:04"`
	IsClosed bool   `json:"is_closed"`
}

type BusinessHours struct {
	Monday    Hours `json:"monday"`
	Tuesday   Hours `json:"tuesday"`
	Wednesday Hours `json:"wednesday"`
	Thursday  Hours `json:"thursday"`
	Friday    Hours `json:"friday"`
	Saturday  Hours `json:"saturday"`
	Sunday    Hours `json:"sunday"`
}

// Day returns the hours for a weekday.
func (b BusinessHours) Day(d time.Weekday) Hours {
	return [...]Hours{b.Sunday, b.Monday, b.Tuesday, b.Wednesday, b.Thursday, b.Friday, b.Saturday}[d]
}

// IsOpen reports whether the garage is open at t, read in t's location.
func (b BusinessHours) IsOpen(t time.Time) bool {
	h := b.Day(t.Weekday())
	if h.IsClosed {
		return false
	}
	open, err := time.Parse("15:04", h.Open)
	if err != nil {
		return false
	}
	closing, err := time.Parse("15:04", h.Close)
	if err != nil {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= open.Hour()*60+open.Minute() && minutes < closing.Hour()*60+closing.Minute()
}

type SocialMedia struct {
	Facebook  string `json:"facebook" validate:"omitempty,url"`
	Instagram string `json:"instagram" validate:"omitempty,url"`
	YouTube   string `json:"youtube" validate:"omitempty,url"`
	Twitter   string `json:"twitter" validate:"omitempty,url"`
	LinkedIn  string `json:"linkedin" validate:"omitempty,url"`
}

type SEOSettings struct {
	MetaTitle       string `json:"meta_title" validate:"max=60"`
	MetaDescription string `json:"meta_description" validate:"max=160"`
	MetaKeywords    string `json:"meta_keywords"`
	OGTitle         string `json:"og_title"`
	OGDescription   string `json:"og_description"`
	OGImage         string `json:"og_image" validate:"omitempty,url"`
}

// Settings is both the read model and the update payload.
type Settings struct {
	Name          string        `json:"name" validate:"required,max=200"`
	Address       string        `json:"address"`
	Phone         string        `json:"phone" validate:"max=20"`
	Email         string        `json:"email" validate:"omitempty,email"`
	Website       string        `json:"website" validate:"omitempty,url"`
	Description   string        `json:"description"`
	SocialMedia   SocialMedia   `json:"social_media"`
	BusinessHours BusinessHours `json:"business_hours"`
	SEOSettings   SEOSettings   `json:"seo_settings"`
}

// DefaultSettings are the values the API starts with.
func DefaultSettings() Settings {
	weekday := Hours{Open: "09:00", Close: "18:00"}
	return Settings{
		Name:  "Agde Moto Gattuso",
		Email: defaultEmail,
		BusinessHours: BusinessHours{
			Monday:    weekday,
			Tuesday:   weekday,
			Wednesday: weekday,
			Thursday:  weekday,
			Friday:    weekday,
			Saturday:  Hours{Open: "09:00", Close: "17:00"},
			Sunday:    Hours{Open: "10:00", Close: "16:00", IsClosed: true},
		},
	}
}

type Service struct {
	tr       resource.Sender
	cache    *cache.Cache
	pipeline *mutation.Pipeline
	policy   cache.Policy
}

func New(tr resource.Sender, c *cache.Cache, p *mutation.Pipeline, policy cache.Policy) *Service {
	return &Service{tr: tr, cache: c, pipeline: p, policy: policy}
}

// Settings reads the current settings.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	return resource.Get[Settings](ctx, s.tr, s.cache, SettingsKey, settingsPath, s.policy)
}

// SettingsOrDefault reads the settings and falls back to the last good value, then to the
// defaults, when the API fails. The error is returned alongside so callers can flag it.
func (s *Service) SettingsOrDefault(ctx context.Context) (Settings, error) {
	settings, err := s.Settings(ctx)
	if err == nil {
		return settings, nil
	}
	var fe *cache.FetchError
	if errors.As(err, &fe) && fe.HasStale {
		return settings, err
	}
	return DefaultSettings(), err
}

// Update replaces the settings. Only admins may do this.
func (s *Service) Update(ctx context.Context, in Settings) (Settings, error) {
	op := mutation.Operation{Kind: mutation.Update, Key: SettingsKey, Payload: in}
	return mutation.Mutate(ctx, s.pipeline, op, func(ctx context.Context) (Settings, error) {
		var out Settings
		err := s.tr.Do(ctx, transport.Request{Method: http.MethodPut, Path: settingsPath, Body: in, RequiresAuth: true}, &out)
		return out, err
	})
}

// ContactLink builds the mailto link of the contact form, addressed to the garage's email or
// the default one.
func ContactLink(settings Settings, subject, body string) string {
	to := settings.Email
	if to == "" {
		to = defaultEmail
	}
	return "mailto:" + to + "?subject=" + escape(subject) + "&body=" + escape(body)
}

// Enquiry returns the subject and body of an enquiry about item, or a general one when item is
// empty.
func Enquiry(item string) (subject, body string) {
	if item == "" {
		return "Information request", "Hello,\n\nI would like some information.\n\nPlease contact me.\n\nKind regards"
	}
	return "Information request - " + item,
		"Hello,\n\nI am interested in " + item + ".\n\nPlease contact me with more information.\n\nKind regards"
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// OpeningHours lists the week as "monday 09:00-18:00" lines, "closed" for closed days.
func OpeningHours(b BusinessHours) []string {
	days := []Hours{b.Monday, b.Tuesday, b.Wednesday, b.Thursday, b.Friday, b.Saturday, b.Sunday}
	lines := make([]string, len(days))
	for i, h := range days {
		if h.IsClosed {
			lines[i] = weekdays[i] + " closed"
			continue
		}
		lines[i] = weekdays[i] + " " + h.Open + "-" + h.Close
	}
	return lines
}
