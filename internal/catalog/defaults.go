package catalog

type seed struct {
	id, effect, style string
}

var defaultSeeds = map[Category][]seed{
	CategoryAuras: {
		{"ember_halo", "", "orbit"},
		{"void_orbit", "", "orbit"},
		{"angel_wings", "", "wings"},
		{"heart_bloom", "", "hearts"},
		{"fire_ice_cone", "", ""},
		{"storm_clouds", "", ""},
		{"wingwang_sigil", "", ""},
		{"fireworks_show", "", ""},
	},
	CategoryAurasPremium: {
		{"vip_aura", "PremiumAuras/VIP_Aura", "orbit"},
		{"vip_plus_aura", "PremiumAuras/VIPPlus_Aura", "crown"},
		{"mvp_aura", "PremiumAuras/MVP_Aura", "pillar"},
		{"mvp_plus_aura", "PremiumAuras/MVPPlus_Aura", "crown"},
	},
	CategoryTrails: {
		{"vip_trail", "Trails/VIP_Trail", "stream"},
		{"vip_plus_trail", "Trails/VIPPlus_Trail", "spark"},
		{"mvp_trail", "Trails/MVP_Trail", "spiral"},
		{"mvp_plus_trail", "Trails/MVPPlus_Trail", "spiral"},
	},
	CategoryFootprints: {
		{"flame_steps", "", "steps"},
		{"frost_steps", "", "steps"},
		{"heart_steps", "", "steps"},
		{"rune_steps", "", "steps"},
	},
	CategoryFloatingBadges: {
		{"vip", "", "badge"},
		{"vip_plus", "", "badge"},
		{"mvp", "", "badge"},
		{"mvp_plus", "", "badge"},
		{"mcqc_legacy_fleur", "Badges/MCQC_Legacy_Fleur_Badge", "badge"},
		{"mcqc_legacy_fleur_b", "Badges/MCQC_Legacy_Fleur_B_Badge", "badge"},
		{"mcqc_legacy_fleur_c", "Badges/MCQC_Legacy_Fleur_C_Badge", "badge"},
	},
	CategoryTrophyBadges: {
		{"season1_champion", "Trophies/Season_Champion_Crown", "crown"},
		{"ranked_top10", "Trophies/Ranked_Top10_Crown", "crown"},
		{"event_winner", "Trophies/Event_Winner_Crown", "crown"},
		{"beta_veteran", "Trophies/Beta_Veteran_Crown", "crown"},
		{"mcqc_legacy_trophy", "Trophies/MCQC_Legacy_Trophy", "crown"},
		{"mcqc_legacy_trophy_b", "Trophies/MCQC_Legacy_Trophy_B", "crown"},
		{"mcqc_legacy_trophy_c", "Trophies/MCQC_Legacy_Trophy_C", "crown"},
	},
}

// Defaults returns the built-in catalog, normalized, in category order.
// Loaded files are merged on top and any default they omit is kept.
func Defaults() []Definition {
	var out []Definition
	for _, category := range categoryOrder {
		for _, s := range defaultSeeds[category] {
			def := Definition{ID: s.id, Category: category, RenderStyle: s.style}
			if s.effect != "" {
				def.EffectID = "Server/Particles/HyPerks/" + s.effect + ".particlesystem"
			}
			normalized, _, _ := def.Normalize()
			out = append(out, normalized)
		}
	}
	return out
}
