package classify

// sceneKey addresses the composition/palette lookup table. A zero value in
// any position acts as a wildcard during fallback.
type sceneKey struct {
	climate   Climate
	archetype Archetype
	event     EventKind
}

type sceneEntry struct {
	composition string
	palette     string
}

var defaultScene = sceneEntry{composition: "open horizon, single subject centered", palette: "muted slate and bone"}

var sceneTable = map[sceneKey]sceneEntry{
	{ClimateEuphoria, ArchetypeL1Sovereign, EventBreakout}:   {"monolithic tower rising through cloudbanks", "gold leaf over ultramarine"},
	{ClimateEuphoria, ArchetypeMemeAscendant, EventBreakout}: {"carnival procession spiraling upward", "saturated candy neon"},
	{ClimateEuphoria, ArchetypeL1Sovereign, ""}:              {"sunlit citadel above a calm sea", "warm amber and deep blue"},
	{ClimateEuphoria, "", ""}:                                {"ascending figures against a radiant sky", "gilded dawn tones"},
	{ClimatePanic, ArchetypeMemeAscendant, EventCapitulation}: {"collapsing parade under storm light", "bruised violet and ash"},
	{ClimatePanic, "", EventCapitulation}:                    {"fractured ground swallowing monuments", "charcoal and ember red"},
	{ClimatePanic, "", ""}:                                   {"stormfront over an abandoned exchange floor", "iron grey with crimson accents"},
	{ClimateDespair, ArchetypePrivacy, ""}:                   {"veiled figure in a dim archive", "ink wash with cold silver"},
	{ClimateDespair, "", ""}:                                 {"low tide revealing sunken machinery", "desaturated sepia"},
	{ClimateCooling, ArchetypeAIOracle, ""}:                  {"dormant observatory under thin cloud", "pale cyan and graphite"},
	{ClimateCooling, "", ""}:                                 {"ebbing crowd leaving a marketplace", "dusk mauve and slate"},
	{ClimateTransition, ArchetypePerpLiquidity, EventSwell}:  {"tidal channels braiding between platforms", "teal currents on sand"},
	{ClimateTransition, "", ""}:                              {"crossroads under a split sky", "balanced ochre and steel blue"},
}

// lookupScene resolves the composition/palette pair with a wildcard
// fallback chain so unmapped combinations never fail.
func lookupScene(climate Climate, archetype Archetype, event EventKind) (string, string) {
	for _, key := range []sceneKey{
		{climate, archetype, event},
		{climate, archetype, ""},
		{climate, "", event},
		{climate, "", ""},
	} {
		if entry, ok := sceneTable[key]; ok {
			return entry.composition, entry.palette
		}
	}
	return defaultScene.composition, defaultScene.palette
}

var motifTable = map[Archetype][]string{
	ArchetypeL1Sovereign:   {"obsidian monolith", "orbital rings", "founding stone"},
	ArchetypeMemeAscendant: {"laughing masks", "balloon animals", "confetti rain"},
	ArchetypePrivacy:       {"veils", "one-way mirrors", "sealed envelopes"},
	ArchetypeAIOracle:      {"glass eye", "branching circuits", "delphic smoke"},
	ArchetypePolitical:     {"podium", "torn banners", "ballot urns"},
	ArchetypePerpLiquidity: {"tidal gauges", "interlocked gears", "funding rivers"},
}

var defaultMotifs = []string{"unlabeled ticker tape", "fog"}

func motifsFor(archetype Archetype) []string {
	if motifs, ok := motifTable[archetype]; ok {
		return append([]string(nil), motifs...)
	}
	return append([]string(nil), defaultMotifs...)
}

type narrativeKey struct {
	climate Climate
	event   EventKind
}

var narrativeTable = map[narrativeKey][]string{
	{ClimateEuphoria, EventBreakout}:     {"the crowd believes the ceiling is gone", "momentum feeds on itself"},
	{ClimateEuphoria, EventDrift}:        {"quiet confidence, almost complacent"},
	{ClimatePanic, EventCapitulation}:    {"everyone is selling to no one", "the floor was a rumor"},
	{ClimatePanic, EventDrift}:           {"dread without a trigger"},
	{ClimateDespair, EventCapitulation}:  {"exhaustion after the fall"},
	{ClimateCooling, EventDrift}:         {"the heat leaves the room slowly"},
	{ClimateTransition, EventSwell}:      {"something large moves beneath the surface"},
	{ClimateTransition, EventBreakout}:   {"an early claim on a new regime"},
}

var defaultNarrative = []string{"the market holds its breath"}

func narrativeFor(climate Climate, event EventKind) []string {
	if hints, ok := narrativeTable[narrativeKey{climate, event}]; ok {
		return append([]string(nil), hints...)
	}
	if hints, ok := narrativeTable[narrativeKey{climate, EventDrift}]; ok {
		return append([]string(nil), hints...)
	}
	return append([]string(nil), defaultNarrative...)
}
