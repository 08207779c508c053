package offset

// Keys are matched case-insensitively after trimming. Countries absent from
// both groups fall through to GroupFeb18.

var defaultCountries = map[string]Offset{
	// Umm al-Qura and calculation-based authorities.
	"Saudi Arabia":           GroupFeb18,
	"United Arab Emirates":   GroupFeb18,
	"Qatar":                  GroupFeb18,
	"Kuwait":                 GroupFeb18,
	"Bahrain":                GroupFeb18,
	"Yemen":                  GroupFeb18,
	"Jordan":                 GroupFeb18,
	"Palestine":              GroupFeb18,
	"Lebanon":                GroupFeb18,
	"Syria":                  GroupFeb18,
	"Iraq":                   GroupFeb18,
	"Egypt":                  GroupFeb18,
	"Sudan":                  GroupFeb18,
	"Libya":                  GroupFeb18,
	"Tunisia":                GroupFeb18,
	"Algeria":                GroupFeb18,
	"Turkey":                 GroupFeb18,
	"Azerbaijan":             GroupFeb18,
	"Kazakhstan":             GroupFeb18,
	"Uzbekistan":             GroupFeb18,
	"Bosnia and Herzegovina": GroupFeb18,
	"Albania":                GroupFeb18,
	"United Kingdom":         GroupFeb18,
	"Ireland":                GroupFeb18,
	"France":                 GroupFeb18,
	"Germany":                GroupFeb18,
	"Netherlands":            GroupFeb18,
	"Belgium":                GroupFeb18,
	"Sweden":                 GroupFeb18,
	"Norway":                 GroupFeb18,
	"Denmark":                GroupFeb18,
	"Spain":                  GroupFeb18,
	"Italy":                  GroupFeb18,
	"United States":          GroupFeb18,
	"Canada":                 GroupFeb18,
	"Nigeria":                GroupFeb18,
	"Somalia":                GroupFeb18,

	// Local moon-sighting authorities.
	"Bangladesh":   GroupFeb19,
	"India":        GroupFeb19,
	"Pakistan":     GroupFeb19,
	"Sri Lanka":    GroupFeb19,
	"Nepal":        GroupFeb19,
	"Afghanistan":  GroupFeb19,
	"Maldives":     GroupFeb19,
	"Morocco":      GroupFeb19,
	"Oman":         GroupFeb19,
	"Iran":         GroupFeb19,
	"Malaysia":     GroupFeb19,
	"Indonesia":    GroupFeb19,
	"Brunei":       GroupFeb19,
	"Singapore":    GroupFeb19,
	"South Africa": GroupFeb19,
	"Australia":    GroupFeb19,
	"New Zealand":  GroupFeb19,
}

// defaultCities holds cities whose observance differs from their country, or
// well-known cities that are frequently entered without a country.
var defaultCities = map[string]Offset{
	"Mecca":     GroupFeb18,
	"Makkah":    GroupFeb18,
	"Medina":    GroupFeb18,
	"Riyadh":    GroupFeb18,
	"Jeddah":    GroupFeb18,
	"Dubai":     GroupFeb18,
	"Abu Dhabi": GroupFeb18,
	"Sharjah":   GroupFeb18,
	"Doha":      GroupFeb18,
	"Istanbul":  GroupFeb18,
	"Cairo":     GroupFeb18,

	"Dhaka":        GroupFeb19,
	"Chittagong":   GroupFeb19,
	"Chattogram":   GroupFeb19,
	"Karachi":      GroupFeb19,
	"Lahore":       GroupFeb19,
	"Islamabad":    GroupFeb19,
	"Delhi":        GroupFeb19,
	"New Delhi":    GroupFeb19,
	"Mumbai":       GroupFeb19,
	"Hyderabad":    GroupFeb19,
	"Colombo":      GroupFeb19,
	"Kathmandu":    GroupFeb19,
	"Casablanca":   GroupFeb19,
	"Rabat":        GroupFeb19,
	"Muscat":       GroupFeb19,
	"Tehran":       GroupFeb19,
	"Kuala Lumpur": GroupFeb19,
	"Jakarta":      GroupFeb19,
}

// defaultComposite keys are "Country (City)" for communities that follow a
// different authority from the rest of the country.
var defaultComposite = map[string]Offset{
	"United Kingdom (Bradford)":  GroupFeb19,
	"United Kingdom (Blackburn)": GroupFeb19,
	"India (Kerala)":             GroupFeb18,
	"South Africa (Durban)":      GroupFeb19,
}

var defaultAliases = map[string]string{
	"UK":                       "United Kingdom",
	"GB":                       "United Kingdom",
	"Great Britain":            "United Kingdom",
	"England":                  "United Kingdom",
	"Scotland":                 "United Kingdom",
	"Wales":                    "United Kingdom",
	"UAE":                      "United Arab Emirates",
	"AE":                       "United Arab Emirates",
	"KSA":                      "Saudi Arabia",
	"SA":                       "Saudi Arabia",
	"USA":                      "United States",
	"US":                       "United States",
	"United States of America": "United States",
	"BD":                       "Bangladesh",
	"PK":                       "Pakistan",
	"IN":                       "India",
	"LK":                       "Sri Lanka",
	"MY":                       "Malaysia",
	"ID":                       "Indonesia",
	"TR":                       "Turkey",
	"Türkiye":                  "Turkey",
	"Turkiye":                  "Turkey",
	"Islamic Republic of Iran": "Iran",
	"Republic of Korea":        "South Korea",
}

// bangladeshDistricts shifts computed times toward the Islamic Foundation's
// published district schedule. Negative sehri moves it earlier; positive iftar
// moves it later.
var bangladeshDistricts = map[string]Correction{
	"Dhaka":       {SehriMinutes: -3, IftarMinutes: 3},
	"Chattogram":  {SehriMinutes: -3, IftarMinutes: 3},
	"Chittagong":  {SehriMinutes: -3, IftarMinutes: 3},
	"Sylhet":      {SehriMinutes: -2, IftarMinutes: 3},
	"Rajshahi":    {SehriMinutes: -3, IftarMinutes: 2},
	"Khulna":      {SehriMinutes: -3, IftarMinutes: 2},
	"Barishal":    {SehriMinutes: -3, IftarMinutes: 3},
	"Barisal":     {SehriMinutes: -3, IftarMinutes: 3},
	"Rangpur":     {SehriMinutes: -2, IftarMinutes: 3},
	"Mymensingh":  {SehriMinutes: -3, IftarMinutes: 3},
	"Cumilla":     {SehriMinutes: -3, IftarMinutes: 3},
	"Comilla":     {SehriMinutes: -3, IftarMinutes: 3},
	"Cox's Bazar": {SehriMinutes: -4, IftarMinutes: 2},
	"Gazipur":     {SehriMinutes: -3, IftarMinutes: 3},
	"Narayanganj": {SehriMinutes: -3, IftarMinutes: 3},
}
