package resolver

// Leading words that different sources abbreviate
var prefixAliases = map[string]string{
	"la":  "los angeles",
	"ny":  "new york",
	"man": "manchester",
	"st":  "saint",
}

// Whole-name aliases, keys already normalized
var teamAliases = map[string]string{
	// NBA abbreviations
	"atl": "atlanta hawks",
	"bos": "boston celtics",
	"bkn": "brooklyn nets",
	"cha": "charlotte hornets",
	"chi": "chicago bulls",
	"cle": "cleveland cavaliers",
	"dal": "dallas mavericks",
	"den": "denver nuggets",
	"det": "detroit pistons",
	"gsw": "golden state warriors",
	"hou": "houston rockets",
	"ind": "indiana pacers",
	"lac": "los angeles clippers",
	"lal": "los angeles lakers",
	"mem": "memphis grizzlies",
	"mia": "miami heat",
	"mil": "milwaukee bucks",
	"min": "minnesota timberwolves",
	"nop": "new orleans pelicans",
	"nyk": "new york knicks",
	"okc": "oklahoma city thunder",
	"orl": "orlando magic",
	"phi": "philadelphia 76ers",
	"phx": "phoenix suns",
	"por": "portland trail blazers",
	"sac": "sacramento kings",
	"sas": "san antonio spurs",
	"tor": "toronto raptors",
	"uta": "utah jazz",
	"was": "washington wizards",

	// Soccer
	"manchester utd": "manchester united",
	"tottenham":      "tottenham hotspur",
	"wolves":         "wolverhampton wanderers",
	"psg":            "paris saint germain",
	"paris sg":       "paris saint germain",
	"inter":          "inter milan",
	"internazionale": "inter milan",
	"bayern":         "bayern munich",
	"bayern munchen": "bayern munich",
	"atletico":       "atletico madrid",
	"nottm forest":   "nottingham forest",

	"brighton and hove albion": "brighton",

	// College
	"uconn":    "connecticut",
	"ole miss": "mississippi",
	"unc":      "north carolina",
	"lsu":      "louisiana state",
	"usc":      "southern california",
	"ucf":      "central florida",
	"smu":      "southern methodist",
	"byu":      "brigham young",
	"tcu":      "texas christian",
	"vcu":      "virginia commonwealth",
	"unlv":     "nevada las vegas",
	"pitt":     "pittsburgh",
}
