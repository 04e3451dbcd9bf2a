package models

// SyncMode is the active filter deciding which items participate in a sync
// run. Toggling any field invalidates cached fingerprints: items entering
// or leaving scope must have their synced status re-validated, not trusted.
type SyncMode struct {
	IncludeText   bool `json:"includeText" env:"INCLUDE_TEXT" envDefault:"true"`
	IncludeHTML   bool `json:"includeHtml" env:"INCLUDE_HTML" envDefault:"true"`
	IncludeRTF    bool `json:"includeRtf" env:"INCLUDE_RTF" envDefault:"true"`
	IncludeImages bool `json:"includeImages" env:"INCLUDE_IMAGES" envDefault:"true"`
	IncludeFiles  bool `json:"includeFiles" env:"INCLUDE_FILES" envDefault:"true"`
	OnlyFavorites bool `json:"onlyFavorites" env:"ONLY_FAVORITES"`
}

// DefaultSyncMode syncs every content type with no favorites restriction.
func DefaultSyncMode() SyncMode {
	return SyncMode{
		IncludeText:   true,
		IncludeHTML:   true,
		IncludeRTF:    true,
		IncludeImages: true,
		IncludeFiles:  true,
	}
}

// Includes reports whether an item with the given type and favorite flag is
// in scope for syncing.
func (m SyncMode) Includes(t ItemType, favorite bool) bool {
	if m.OnlyFavorites && !favorite {
		return false
	}
	switch t {
	case TypeText:
		return m.IncludeText
	case TypeHTML:
		return m.IncludeHTML
	case TypeRTF:
		return m.IncludeRTF
	case TypeImage:
		return m.IncludeImages
	case TypeFiles:
		return m.IncludeFiles
	default:
		return false
	}
}
