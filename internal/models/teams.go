package models

// NBA team full names to standard abbreviations
var teamAbbreviations = map[string]string{
	"Atlanta Hawks":          "ATL",
	"Boston Celtics":         "BOS",
	"Brooklyn Nets":          "BKN",
	"Charlotte Hornets":      "CHA",
	"Chicago Bulls":          "CHI",
	"Cleveland Cavaliers":    "CLE",
	"Dallas Mavericks":       "DAL",
	"Denver Nuggets":         "DEN",
	"Detroit Pistons":        "DET",
	"Golden State Warriors":  "GSW",
	"Houston Rockets":        "HOU",
	"Indiana Pacers":         "IND",
	"Los Angeles Clippers":   "LAC",
	"LA Clippers":            "LAC",
	"Los Angeles Lakers":     "LAL",
	"Memphis Grizzlies":      "MEM",
	"Miami Heat":             "MIA",
	"Milwaukee Bucks":        "MIL",
	"Minnesota Timberwolves": "MIN",
	"New Orleans Pelicans":   "NOP",
	"New York Knicks":        "NYK",
	"Oklahoma City Thunder":  "OKC",
	"Orlando Magic":          "ORL",
	"Philadelphia 76ers":     "PHI",
	"Phoenix Suns":           "PHX",
	"Portland Trail Blazers": "POR",
	"Sacramento Kings":       "SAC",
	"San Antonio Spurs":      "SAS",
	"Toronto Raptors":        "TOR",
	"Utah Jazz":              "UTA",
	"Washington Wizards":     "WAS",
}

// TeamAbbreviation returns the abbreviation for a team name.
// Unknown names are returned unchanged.
func TeamAbbreviation(name string) string {
	if abbr, ok := teamAbbreviations[name]; ok {
		return abbr
	}
	return name
}

// GameLabel formats a matchup as "AWY@HOM"
func GameLabel(away, home string) string {
	return TeamAbbreviation(away) + "@" + TeamAbbreviation(home)
}
