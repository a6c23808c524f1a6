package siteconfig

// Defaults returns the hard-coded document used on first boot and as the
// factory-reset target when no master backup exists.
func Defaults() Document {
	return Document{
		Brand: Brand{
			Name:         "Can Fonda",
			Tagline:      "Cuina catalana de mercat",
			LogoURL:      "/img/logo.png",
			FaviconURL:   "/favicon.ico",
			PrimaryColor: "#7a1f1f",
			AccentColor:  "#d9a441",
		},
		Hero: Hero{
			Title:              "Benvinguts a Can Fonda",
			Subtitle:           "Cuina de temporada al cor del poble",
			BackgroundImages:   []string{"/img/hero-1.jpg"},
			ButtonText:         "Reserva taula",
			ReservationVisible: true,
			FormType:           FormReservation,
		},
		ReservationForm: ReservationForm{
			Title:          "Reserva la teva taula",
			Subtitle:       "Et confirmarem la reserva per telèfon",
			MinPax:         1,
			MaxPax:         12,
			TimeSlots:      []string{"13:00", "13:30", "14:00", "14:30", "20:30", "21:00", "21:30"},
			ClosedWeekdays: []int{1},
			MaxDaysAhead:   60,
			SuccessMessage: "Gràcies! Hem rebut la teva sol·licitud de reserva.",
			PrivacyText:    "Accepto la política de privacitat",
		},
		FoodMenu: Menu{
			Title:    "La carta",
			Icon:     "utensils",
			Visible:  true,
			Sections: []MenuSection{},
		},
		DailyMenu: Menu{
			Title:    "Menú del dia",
			Icon:     "calendar",
			Visible:  true,
			Note:     "De dimarts a divendres, migdia",
			Sections: []MenuSection{},
		},
		WineMenu: Menu{
			Title:    "Carta de vins",
			Icon:     "wine-glass",
			Visible:  true,
			Sections: []MenuSection{},
		},
		ExtraMenus: []ExtraMenu{},
		Contact: Contact{
			Title:   "On som",
			Phone:   "+34 972 000 000",
			Email:   "hola@canfonda.cat",
			Address: "Plaça Major, 1, 17001 Girona",
			Hours: []OpeningHours{
				{Days: "Dimarts a diumenge", Hours: "13:00 - 16:00"},
				{Days: "Divendres i dissabte", Hours: "20:30 - 23:00"},
			},
			Visible: true,
		},
		Admin: Admin{
			MaxHeroImages: 5,
			MaxExtraMenus: 6,
		},
	}
}

// defaultExtraMenu is the template every extra menu entry is filled over.
func defaultExtraMenu() ExtraMenu {
	return ExtraMenu{
		Title:    "Menú especial",
		Icon:     "star",
		Visible:  true,
		Sections: []MenuSection{},
	}
}
