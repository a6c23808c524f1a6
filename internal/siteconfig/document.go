// Package siteconfig holds the websiteConfig document, its hard-coded
// defaults, the ingestion pipeline that turns remote emissions into a fully
// populated document, and the Synchronizer that keeps it current.
package siteconfig

import (
	"bytes"
	"encoding/json"
)

// FormType selects which form the hero shows.
type FormType string

const (
	FormReservation FormType = "reservation"
	FormContact     FormType = "contact"
	FormNone        FormType = "none"
)

func (f FormType) Valid() bool {
	switch f {
	case FormReservation, FormContact, FormNone:
		return true
	}
	return false
}

// Document is the singleton content record stored at websiteConfig.
type Document struct {
	Brand           Brand           `json:"brand"`
	Hero            Hero            `json:"hero"`
	ReservationForm ReservationForm `json:"reservationForm"`
	FoodMenu        Menu            `json:"foodMenu"`
	DailyMenu       Menu            `json:"dailyMenu"`
	WineMenu        Menu            `json:"wineMenu"`
	ExtraMenus      []ExtraMenu     `json:"extraMenus"`
	Contact         Contact         `json:"contact"`
	Admin           Admin           `json:"admin"`
}

type Brand struct {
	Name         string `json:"name"`
	Tagline      string `json:"tagline"`
	LogoURL      string `json:"logoUrl"`
	FaviconURL   string `json:"faviconUrl"`
	PrimaryColor string `json:"primaryColor"`
	AccentColor  string `json:"accentColor"`
}

type Hero struct {
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle"`
	BackgroundImages []string `json:"backgroundImages"`
	ButtonText       string   `json:"buttonText"`
	// ReservationVisible predates FormType and is only read to derive it.
	ReservationVisible bool     `json:"reservationVisible"`
	FormType           FormType `json:"formType"`
}

type ReservationForm struct {
	Title          string   `json:"title"`
	Subtitle       string   `json:"subtitle"`
	MinPax         int      `json:"minPax"`
	MaxPax         int      `json:"maxPax"`
	TimeSlots      []string `json:"timeSlots"`
	ClosedWeekdays []int    `json:"closedWeekdays"` // 0 = Sunday
	MaxDaysAhead   int      `json:"maxDaysAhead"`
	SuccessMessage string   `json:"successMessage"`
	PrivacyText    string   `json:"privacyText"`
}

// Menu is the wrapper shape of a menu collection: metadata plus sections.
type Menu struct {
	Title    string        `json:"title"`
	Icon     string        `json:"icon"`
	Visible  bool          `json:"visible"`
	Note     string        `json:"note"`
	Sections []MenuSection `json:"sections"`
}

type MenuSection struct {
	Title string     `json:"title"`
	Items []MenuItem `json:"items"`
}

type MenuItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       Price    `json:"price,omitempty"`
	Allergens   []string `json:"allergens,omitempty"`
}

// ExtraMenu is an additional, admin-created menu (tasting menu, group menu...).
type ExtraMenu struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Icon     string        `json:"icon"`
	Visible  bool          `json:"visible"`
	Price    Price         `json:"price"`
	Note     string        `json:"note"`
	Sections []MenuSection `json:"sections"`
}

type Contact struct {
	Title     string         `json:"title"`
	Phone     string         `json:"phone"`
	Email     string         `json:"email"`
	Address   string         `json:"address"`
	MapsURL   string         `json:"mapsUrl"`
	Instagram string         `json:"instagram"`
	Facebook  string         `json:"facebook"`
	Hours     []OpeningHours `json:"hours"`
	Visible   bool           `json:"visible"`
}

type OpeningHours struct {
	Days  string `json:"days"`
	Hours string `json:"hours"`
}

// Admin carries limits the admin panel enforces when editing.
type Admin struct {
	MaxHeroImages int `json:"maxHeroImages"`
	MaxExtraMenus int `json:"maxExtraMenus"`
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	b, err := json.Marshal(d)
	if err != nil {
		return d
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return d
	}
	return out
}

// Price is free text ("12,50 €", "s.m."). Older clients stored bare
// numbers, which are kept as their literal text.
type Price string

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Price(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = Price(n.String())
	return nil
}
