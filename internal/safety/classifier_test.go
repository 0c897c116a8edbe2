package safety

import "testing"

func TestCrisisClassify(t *testing.T) {
	patterns := CrisisPatterns()

	tests := []struct {
		name string
		text string
		want Tier
	}{
		{"explicit immediate FR", "je vais me tuer maintenant", TierExplicitImmediate},
		{"explicit immediate EN", "I'm going to kill myself right now", TierExplicitImmediate},
		{"explicit without immediacy", "je veux me suicider", TierExplicit},
		{"explicit EN", "I want to die", TierExplicit},
		{"probable FR", "j'ai des idees noires en ce moment", TierProbable},
		{"probable EN", "I keep having dark thoughts", TierProbable},
		{"soft FR", "j'en peux plus de cette situation", TierSoft},
		{"soft EN", "I can't take it anymore", TierSoft},
		{"benign", "ma journee etait correcte", TierNone},
		{"whitelisted joke", "je vais me tuer de rire", TierNone},
		{"whitelisted kidding", "I want to die, just kidding", TierNone},
		{"accented input folds", "Je veux me suicider", TierExplicit},
		{"curly apostrophe folds", "j’ai des idées noires", TierProbable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := patterns.Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

// The whitelist suppresses lower tiers but must never suppress an explicit
// expression paired with an immediacy marker.
func TestWhitelistNeverSuppressesImmediate(t *testing.T) {
	patterns := CrisisPatterns()

	got := patterns.Classify("je vais me tuer maintenant, je plaisante")
	if got != TierExplicitImmediate {
		t.Errorf("Classify() = %q, want %q", got, TierExplicitImmediate)
	}
}

func TestMedicalClassify(t *testing.T) {
	patterns := MedicalPatterns()

	tests := []struct {
		name string
		text string
		want Tier
	}{
		{"explicit immediate FR", "je fais une crise cardiaque maintenant", TierExplicitImmediate},
		{"explicit immediate EN", "chest pain right now", TierExplicitImmediate},
		{"explicit", "j'ai une douleur dans la poitrine", TierExplicit},
		{"explicit EN", "I can't breathe", TierExplicit},
		{"probable", "j'ai des palpitations depuis ce matin", TierProbable},
		{"probable EN", "my arm is numb", TierProbable},
		{"soft", "j'ai la tete qui tourne", TierSoft},
		{"soft EN", "I'm feeling dizzy", TierSoft},
		{"idiomatic sadness whitelisted", "j'ai mal au coeur quand j'y pense", TierNone},
		{"heartbreak whitelisted", "I'm completely heartbroken", TierNone},
		{"benign", "je me sens bien aujourd'hui", TierNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := patterns.Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Je Vais  BIEN ", "je vais bien"},
		{"déçu très tôt", "decu tres tot"},
		{"j’ai froid", "j'ai froid"},
		{"a\nb\tc", "a b c"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
