package catalog

import (
	"strings"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/rigs"
)

// Backend selects how a cosmetic is drawn.
type Backend string

const (
	BackendParticle Backend = "particle"
	BackendModel3D  Backend = "model3d"
)

const (
	permissionPrefix = "hyperks.cosmetic."
	fallbackEffectID = "Server/Particles/Combat/Impact/Critical/Impact_Critical.particlesystem"
)

// Definition is one catalog entry as authored on disk. Normalize fills the
// derived fields; Profile is only meaningful afterwards.
type Definition struct {
	ID            string   `json:"id" jsonschema:"title=Cosmetic id,description=Identifier unique within its category.,minLength=1,required"`
	Category      Category `json:"category" jsonschema:"title=Category,enum=auras,enum=auras_premium,enum=trails,enum=footprints,enum=floating_badges,enum=trophy_badges,required"`
	Permission    string   `json:"permission,omitempty" jsonschema:"description=Permission node. Defaults to hyperks.cosmetic.<category>.<id>."`
	NameKey       string   `json:"nameKey,omitempty" jsonschema:"description=Localization key for the display name."`
	EffectID      string   `json:"effectId,omitempty" jsonschema:"description=Particle system asset id used by the particle backend."`
	RenderStyle   string   `json:"renderStyle,omitempty" jsonschema:"description=Emission pattern. Defaults per category."`
	RenderBackend Backend  `json:"renderBackend,omitempty" jsonschema:"enum=particle,enum=model3d"`
	ModelAssetID  string   `json:"modelAssetId,omitempty" jsonschema:"description=Model asset id of the rig base. Implies the model3d backend."`
	RigProfile    string   `json:"rigProfile,omitempty" jsonschema:"enum=default,enum=fire_ice_cone,enum=storm_clouds,enum=wingwang_sigil,enum=fireworks_show"`
	Enabled       *bool    `json:"enabled,omitempty" jsonschema:"description=Disabled entries are ignored. Defaults to true."`

	Profile rigs.Profile `json:"-"`
}

// File is the on-disk catalog document. The loader also accepts an object
// keyed by cosmetic id; the schema describes the array form.
type File []Definition

// IsEnabled treats a missing flag as enabled.
func (d Definition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// IsModel reports whether the rig engine, not the particle renderer, owns
// this cosmetic.
func (d Definition) IsModel() bool {
	return d.RenderBackend == BackendModel3D
}

// Key is the catalog-wide identity of the entry.
func (d Definition) Key() string {
	return string(d.Category) + ":" + d.ID
}

// Normalize lowercases ids, migrates legacy entries and fills defaults. It
// returns false for entries without an id or category. An unknown rig
// profile falls back to the default profile and is returned as err.
func (d Definition) Normalize() (Definition, bool, error) {
	d.ID = strings.ToLower(strings.TrimSpace(d.ID))
	d.Category = Category(strings.ToLower(strings.TrimSpace(string(d.Category))))
	if d.ID == "" || d.Category == "" {
		return d, false, nil
	}

	if d.migrateLegacyBadge() {
		d.Permission = ""
		d.NameKey = ""
	}
	if strings.TrimSpace(d.Permission) == "" {
		d.Permission = permissionPrefix + string(d.Category) + "." + d.ID
	}
	if strings.TrimSpace(d.NameKey) == "" {
		d.NameKey = "cosmetic." + string(d.Category) + "." + d.ID + ".name"
	}

	d.EffectID = d.migrateEffect(assets.Normalize(d.EffectID))
	if d.EffectID == "" {
		d.EffectID = defaultEffectID(d.Category)
	}

	d.ModelAssetID = assets.Normalize(d.ModelAssetID)
	profileName := strings.ToLower(strings.TrimSpace(d.RigProfile))
	if profileName == "" {
		profileName = defaultRigProfile(d.Category, d.ID)
	}

	backend := Backend(strings.ToLower(strings.TrimSpace(string(d.RenderBackend))))
	if backend == "" {
		backend = BackendParticle
		if d.ModelAssetID != "" || defaultModelAssetID(d.Category, d.ID) != "" {
			backend = BackendModel3D
		}
	}
	if backend != BackendParticle && backend != BackendModel3D {
		backend = BackendParticle
		if d.ModelAssetID != "" {
			backend = BackendModel3D
		}
	}
	d.RenderBackend = backend
	if d.RenderBackend == BackendModel3D && d.ModelAssetID == "" {
		d.ModelAssetID = defaultModelAssetID(d.Category, d.ID)
	}

	if style := strings.ToLower(strings.TrimSpace(d.RenderStyle)); style != "" {
		d.RenderStyle = style
	} else {
		d.RenderStyle = defaultRenderStyle(d.Category, d.ID)
	}

	profile, err := rigs.ParseProfile(profileName)
	d.Profile = profile
	d.RigProfile = profile.String()
	if profileName == "" {
		d.RigProfile = ""
	}
	return d, true, err
}

// migrateLegacyBadge renames pre-rework floating badge ids.
func (d *Definition) migrateLegacyBadge() bool {
	if d.Category != CategoryFloatingBadges {
		return false
	}
	renamed, effect := "", ""
	switch d.ID {
	case "vip_gold":
		renamed, effect = "vip", badgeEffect("VIP_Gold")
	case "vip_plus_platinum":
		renamed, effect = "vip_plus", badgeEffect("VIP_Platinum")
	case "mvp_diamond":
		renamed, effect = "mvp", badgeEffect("MVP_Diamond")
	case "founder_crest":
		renamed, effect = "mvp_plus", badgeEffect("Founder_Crest")
	default:
		return false
	}
	d.ID, d.EffectID, d.RenderStyle = renamed, effect, "badge"
	return true
}

// migrateEffect swaps stock placeholder effects for the dedicated assets.
func (d *Definition) migrateEffect(current string) string {
	switch d.Category {
	case CategoryAuras:
		recommended := auraEffects[d.ID]
		if recommended == "" {
			return current
		}
		if current == "" || current == legacyAuraEffects[d.ID] {
			return recommended
		}
	case CategoryFootprints:
		recommended := footprintEffects[d.ID]
		if recommended == "" {
			return current
		}
		if current == "" || current == legacyFootprintEffects[d.ID] {
			return recommended
		}
	case CategoryFloatingBadges:
		recommended := floatingBadgeEffects[d.ID]
		if recommended == "" {
			return current
		}
		if current == "" || strings.Contains(current, "/RankTags/") {
			d.RenderStyle = "badge"
			return recommended
		}
		if strings.EqualFold(strings.TrimSpace(d.RenderStyle), "rank_stream") {
			d.RenderStyle = "badge"
		}
	}
	return current
}

var (
	auraEffects = map[string]string{
		"ember_halo":     "Server/Particles/HyPerks/Auras/Ember_Halo.particlesystem",
		"void_orbit":     "Server/Particles/HyPerks/Auras/Void_Orbit.particlesystem",
		"angel_wings":    "Server/Particles/HyPerks/Auras/Angel_Wings.particlesystem",
		"heart_bloom":    "Server/Particles/HyPerks/Auras/Heart_Bloom.particlesystem",
		"fire_ice_cone":  "Server/Particles/HyPerks/Auras/Fire_Ice_Cone.particlesystem",
		"storm_clouds":   "Server/Particles/HyPerks/Auras/Storm_Clouds.particlesystem",
		"wingwang_sigil": "Server/Particles/HyPerks/Auras/WingWang_Sigil.particlesystem",
		"fireworks_show": "Server/Particles/HyPerks/Auras/Fireworks_Show.particlesystem",
	}
	legacyAuraEffects = map[string]string{
		"ember_halo":  "Server/Particles/Combat/Impact/Misc/Fire/Impact_Fire.particlesystem",
		"void_orbit":  "Server/Particles/Combat/Impact/Misc/Void/VoidImpact.particlesystem",
		"angel_wings": "Server/Particles/Combat/Impact/Critical/Impact_Critical.particlesystem",
		"heart_bloom": "Server/Particles/Combat/Mace/Signature/Mace_Signature_Cast_End.particlesystem",
	}
	footprintEffects = map[string]string{
		"flame_steps": "Server/Particles/HyPerks/Footprints/Flame_Steps.particlesystem",
		"frost_steps": "Server/Particles/HyPerks/Footprints/Frost_Steps.particlesystem",
		"heart_steps": "Server/Particles/HyPerks/Footprints/Heart_Steps.particlesystem",
		"rune_steps":  "Server/Particles/HyPerks/Footprints/Rune_Steps.particlesystem",
	}
	legacyFootprintEffects = map[string]string{
		"flame_steps": "Server/Particles/Block/Lava/Block_Run_Lava.particlesystem",
		"frost_steps": "Server/Particles/Block/Snow/Block_Run_Snow.particlesystem",
		"heart_steps": "Server/Particles/Block/Grass/Block_Sprint_Grass.particlesystem",
		"rune_steps":  "Server/Particles/Block/Crystal/Block_Run_Crystal.particlesystem",
	}
	floatingBadgeEffects = map[string]string{
		"vip":      badgeEffect("VIP_Gold"),
		"vip_plus": badgeEffect("VIP_Platinum"),
		"mvp":      badgeEffect("MVP_Diamond"),
		"mvp_plus": badgeEffect("Founder_Crest"),
	}
	modelAuras = map[string]string{
		"fire_ice_cone":  "FireIceCone",
		"storm_clouds":   "StormClouds",
		"wingwang_sigil": "WingWangSigil",
		"fireworks_show": "FireworksShow",
	}
)

func badgeEffect(name string) string {
	return "Server/Particles/HyPerks/Badges/" + name + "_Badge.particlesystem"
}

func defaultEffectID(category Category) string {
	switch category {
	case CategoryAuras:
		return auraEffects["ember_halo"]
	case CategoryAurasPremium:
		return "Server/Particles/HyPerks/PremiumAuras/VIP_Aura.particlesystem"
	case CategoryTrails:
		return "Server/Particles/HyPerks/Trails/VIP_Trail.particlesystem"
	case CategoryFootprints:
		return footprintEffects["flame_steps"]
	case CategoryFloatingBadges:
		return badgeEffect("VIP_Gold")
	case CategoryTrophyBadges:
		return "Server/Particles/HyPerks/Trophies/Season_Champion_Crown.particlesystem"
	default:
		return fallbackEffectID
	}
}

func defaultModelAssetID(category Category, id string) string {
	if category != CategoryAuras {
		return ""
	}
	name, ok := modelAuras[id]
	if !ok {
		return ""
	}
	return "Server/Models/HyPerksVFX/" + name + "_Rig.json"
}

func defaultRigProfile(category Category, id string) string {
	if category != CategoryAuras {
		return ""
	}
	if _, ok := modelAuras[id]; ok {
		return id
	}
	return ""
}

func defaultRenderStyle(category Category, id string) string {
	if category == CategoryAuras {
		switch {
		case strings.Contains(id, "cone"):
			return "cone"
		case strings.Contains(id, "storm"):
			return "storm"
		case strings.Contains(id, "sigil"), strings.Contains(id, "wingwang"):
			return "sigil"
		case strings.Contains(id, "firework"):
			return "fireworks"
		case strings.Contains(id, "wing"):
			return "wings"
		case strings.Contains(id, "heart"):
			return "hearts"
		default:
			return "orbit"
		}
	}
	switch category {
	case CategoryAurasPremium, CategoryTrophyBadges:
		return "crown"
	case CategoryTrails:
		return "stream"
	case CategoryFootprints:
		return "steps"
	case CategoryFloatingBadges:
		return "badge"
	default:
		return "default"
	}
}
