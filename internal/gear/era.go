package gear

type Era struct {
	Label       string
	Description string
}

var eras = []struct {
	before int
	era    Era
}{
	{1960, Era{"1950s early electric era", "simple setups, clean tones and minimal effects, with Fender and Gibson amps dominating"}},
	{1970, Era{"1960s British Invasion era", "Marshall stacks emerging, fuzz pedals and louder, more overdriven tones"}},
	{1980, Era{"1970s classic rock era", "higher gain, the first MXR and Boss pedals and larger amp stacks"}},
	{1990, Era{"1980s hair metal and new wave era", "high gain, chorus, rack gear and modified Marshalls or Mesa Boogies"}},
	{2000, Era{"1990s grunge and alternative era", "vintage gear pushed harder, from clean to extreme distortion"}},
	{2010, Era{"2000s boutique era", "boutique amps, early digital modeling and growing pedalboards"}},
}

var modernEra = Era{"2010s modern era", "boutique pedals everywhere, high-end amps and digital modeling"}

func EraFor(year int) Era {
	for _, e := range eras {
		if year < e.before {
			return e.era
		}
	}
	return modernEra
}
