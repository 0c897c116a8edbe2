package safety

import "regexp"

// Patterns are matched against Normalize output: lowercase, accents folded,
// curly apostrophes replaced by '.

// CrisisPatterns covers self-harm/suicide language, French and English.
func CrisisPatterns() PatternSet {
	return PatternSet{
		Explicit: []*regexp.Regexp{
			regexp.MustCompile(`\bje\s+(?:vais|veux)\s+me\s+(?:tuer|suicider|pendre)\b`),
			regexp.MustCompile(`\bje\s+vais\s+me\s+faire\s+du\s+mal\b`),
			regexp.MustCompile(`\bje\s+vais\s+mourir\b`),
			regexp.MustCompile(`\bkill\s+myself\b`),
			regexp.MustCompile(`\bi\s+want\s+to\s+die\b`),
			regexp.MustCompile(`\bi'?m\s+going\s+to\s+kill\s+myself\b`),
			regexp.MustCompile(`\bend\s+my\s+life\b`),
		},
		Immediate: []*regexp.Regexp{
			regexp.MustCompile(`\bmaintenant\b`),
			regexp.MustCompile(`\btout\s+de\s+suite\b`),
			regexp.MustCompile(`\ba\s+l'instant\b`),
			regexp.MustCompile(`\bimmediat(?:ement)?\b`),
			regexp.MustCompile(`\bdans\s+un\s+instant\b`),
			regexp.MustCompile(`\bright\s+now\b`),
			regexp.MustCompile(`\btonight\b`),
		},
		Probable: []*regexp.Regexp{
			regexp.MustCompile(`\bj'?ai\s+envie\s+de\s+mourir\b`),
			regexp.MustCompile(`\bj'?en\s+ai\s+marre\s+de\s+la\s+vie\b`),
			regexp.MustCompile(`\bplus\s+d'?envie\s+de\s+vivre\b`),
			regexp.MustCompile(`\bje\s+veux\s+disparaitre\b`),
			regexp.MustCompile(`\bidees?\s+noires?\b`),
			regexp.MustCompile(`\bwish\s+i\s+could\s+disappear\b`),
			regexp.MustCompile(`\bthink\s+about\s+dying\b`),
			regexp.MustCompile(`\bdark\s+thoughts\b`),
		},
		Soft: []*regexp.Regexp{
			regexp.MustCompile(`\bj'?en\s+peux?\s+plus\b`),
			regexp.MustCompile(`\bj'?ai\s+marre\b`),
			regexp.MustCompile(`\bras[-\s]?le[-\s]?bol\b`),
			regexp.MustCompile(`\bla\s+vie\s+me\s+(?:saoule|fatigue|degoute)\b`),
			regexp.MustCompile(`\bi\s+can'?t\s+take\s+it\s+anymore\b`),
			regexp.MustCompile(`\bcompletely\s+exhausted\b`),
		},
		Whitelist: []*regexp.Regexp{
			regexp.MustCompile(`\bde\s+rire\b`),
			regexp.MustCompile(`\bpour\s+rigoler\b`),
			regexp.MustCompile(`\bc'?est\s+pour\s+rigoler\b`),
			regexp.MustCompile(`\bje\s+plaisante\b`),
			regexp.MustCompile(`\bjust\s+kidding\b`),
			regexp.MustCompile(`\bfor\s+fun\b`),
		},
	}
}

// MedicalPatterns covers medical-emergency language; same tier structure,
// independent gate.
func MedicalPatterns() PatternSet {
	return PatternSet{
		Explicit: []*regexp.Regexp{
			regexp.MustCompile(`\bcrise\s+cardiaque\b`),
			regexp.MustCompile(`\bje\s+fais\s+un\s+avc\b`),
			regexp.MustCompile(`\bje\s+n'?arrive\s+plus\s+a\s+respirer\b`),
			regexp.MustCompile(`\bdouleur\s+(?:dans|a)\s+la\s+poitrine\b`),
			regexp.MustCompile(`\bje\s+perds\s+connaissance\b`),
			regexp.MustCompile(`\bheart\s+attack\b`),
			regexp.MustCompile(`\bi\s+can'?t\s+breathe\b`),
			regexp.MustCompile(`\bchest\s+pains?\b`),
			regexp.MustCompile(`\bpassing\s+out\b`),
		},
		Immediate: []*regexp.Regexp{
			regexp.MustCompile(`\bmaintenant\b`),
			regexp.MustCompile(`\btout\s+de\s+suite\b`),
			regexp.MustCompile(`\ba\s+l'instant\b`),
			regexp.MustCompile(`\ben\s+ce\s+moment\s+meme\b`),
			regexp.MustCompile(`\bright\s+now\b`),
		},
		Probable: []*regexp.Regexp{
			regexp.MustCompile(`\bmon\s+bras\s+(?:gauche\s+)?est\s+engourdi\b`),
			regexp.MustCompile(`\bpalpitations?\b`),
			regexp.MustCompile(`\bje\s+crois\s+que\s+je\s+fais\s+un\s+malaise\b`),
			regexp.MustCompile(`\bvision\s+trouble\b`),
			regexp.MustCompile(`\bmy\s+arm\s+is\s+numb\b`),
			regexp.MustCompile(`\bfeel\s+faint\b`),
		},
		Soft: []*regexp.Regexp{
			regexp.MustCompile(`\bje\s+me\s+sens\s+(?:tres\s+)?mal\b`),
			regexp.MustCompile(`\bj'?ai\s+la\s+tete\s+qui\s+tourne\b`),
			regexp.MustCompile(`\bfeeling\s+dizzy\b`),
		},
		Whitelist: []*regexp.Regexp{
			// "mal au coeur" is idiomatic sadness/nausea, not cardiac language.
			regexp.MustCompile(`\bmal\s+au\s+c(?:oe|\x{0153})ur\b`),
			regexp.MustCompile(`\bc(?:oe|\x{0153})ur\s+brise\b`),
			regexp.MustCompile(`\bheartbroken\b`),
			regexp.MustCompile(`\bmy\s+heart\s+aches\b`),
			regexp.MustCompile(`\bje\s+plaisante\b`),
			regexp.MustCompile(`\bjust\s+kidding\b`),
		},
	}
}
