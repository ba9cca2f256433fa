package game

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

var eu4DateKeys = set(
	"date", "start_date", "birth_date", "death_date", "last_war",
	"last_election", "first_start_date", "end_date", "monarch_date",
	"heir_date", "truce_until", "last_sold_province",
)

var eu4IntKeys = set(
	"seed", "random", "random_seed", "multiplayer_random_seed",
	"id", "type", "speed", "count", "checksum_seed",
)

var table = []Capabilities{
	{
		Game:        EU4,
		Name:        "Europa Universalis IV",
		Versions:    VersionRange{Max: Version{Major: 1, Minor: 30, Patch: 99}},
		Extension:   ".eu4",
		Encoding:    Windows1252,
		Envelope:    MagicPrefix,
		BinaryMagic: "EU4bin",
		TextMagic:   "EU4txt",
		F32:         Fixed3,
		F64:         Q49_15,
		MinDateYear: -100,
		MaxDateYear: 9999,
		DateKeys:    eu4DateKeys,
		IntKeys:     eu4IntKeys,
		OmitKeys:    set("is_ironman"),
		DatePath:    []string{"date"},
		Frequency:   "yearly",
	},
	{
		Game:        EU4,
		Name:        "Europa Universalis IV",
		Versions:    VersionRange{Min: Version{Major: 1, Minor: 31}},
		Extension:   ".eu4",
		Encoding:    Windows1252,
		Envelope:    MagicPrefix,
		BinaryMagic: "EU4bin",
		TextMagic:   "EU4txt",
		F32:         Fixed3,
		F64:         Q49_15,
		MinDateYear: -100,
		MaxDateYear: 9999,
		DateKeys:    eu4DateKeys,
		IntKeys:     eu4IntKeys,
		OmitKeys:    set("is_ironman", "ironman"),
		DatePath:    []string{"date"},
		Frequency:   "yearly",
	},
	{
		Game:        CK3,
		Name:        "Crusader Kings III",
		Extension:   ".ck3",
		Encoding:    UTF8,
		Envelope:    SAVHeader,
		F32:         IEEE32,
		F64:         Decimal5,
		MinDateYear: -100,
		MaxDateYear: 9999,
		DateKeys:    set("date", "meta_date", "birth", "death_date", "start_date", "end_date", "bookmark_date"),
		IntKeys:     set("seed", "random_seed", "id", "count", "version"),
		OmitKeys:    set("ironman", "ironman_manager"),
		DatePath:    []string{"meta_data", "meta_date"},
		Frequency:   "yearly",
	},
	{
		Game:        HOI4,
		Name:        "Hearts of Iron IV",
		Extension:   ".hoi4",
		Encoding:    UTF8,
		Envelope:    MagicPrefix,
		BinaryMagic: "HOI4bin",
		TextMagic:   "HOI4txt",
		F32:         Fixed3,
		F64:         Q49_15,
		DateHours:   true,
		MinDateYear: 1800,
		MaxDateYear: 2500,
		DateKeys:    set("date", "start_date", "end_date"),
		IntKeys:     set("seed", "random_seed", "id", "type", "version"),
		OmitKeys:    set("ironman"),
		DatePath:    []string{"date"},
		Frequency:   "monthly",
	},
	{
		Game:        Imperator,
		Name:        "Imperator: Rome",
		Extension:   ".rome",
		Encoding:    UTF8,
		Envelope:    SAVHeader,
		F32:         IEEE32,
		F64:         Decimal5,
		MinDateYear: -100,
		MaxDateYear: 9999,
		DateKeys:    set("date", "birth_date", "death_date", "start_date"),
		IntKeys:     set("seed", "random_seed", "id", "version"),
		OmitKeys:    set("ironman", "ironman_manager"),
		DatePath:    []string{"date"},
		Frequency:   "yearly",
	},
	{
		Game:        Vic3,
		Name:        "Victoria 3",
		Extension:   ".v3",
		Encoding:    UTF8,
		Envelope:    SAVHeader,
		F32:         IEEE32,
		F64:         Decimal5,
		MinDateYear: 1000,
		MaxDateYear: 9999,
		DateKeys:    set("date", "game_date", "start_date", "end_date"),
		IntKeys:     set("seed", "random_seed", "id", "version"),
		OmitKeys:    set("ironman", "ironman_manager"),
		DatePath:    []string{"meta_data", "game_date"},
		Frequency:   "quarterly",
	},
}
