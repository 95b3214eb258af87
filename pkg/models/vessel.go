package models

// VesselPart is one addressable component of a vessel. Part indices are the
// compact identifiers used on telemetry topics and in binary reports; part
// ids are the stable names flights and commands refer to.
type VesselPart struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
	// PartType is a coarse grouping hint for visualization, not a
	// description of capabilities.
	PartType string  `bson:"part_type" json:"part_type"`
	Virtual  bool    `bson:"virtual" json:"virtual"`
	Parent   *string `bson:"parent,omitempty" json:"parent,omitempty"`
}

// equal compares two parts field by field, following Parent pointers.
func (p VesselPart) equal(o VesselPart) bool {
	if p.ID != o.ID || p.Name != o.Name || p.PartType != o.PartType || p.Virtual != o.Virtual {
		return false
	}
	if (p.Parent == nil) != (o.Parent == nil) {
		return false
	}
	return p.Parent == nil || *p.Parent == *o.Parent
}

// Vessel is a telemetry-producing craft. Every structural change bumps
// Version and snapshots the previous state, so flights recorded against an
// older version keep resolving their part layout.
type Vessel struct {
	ID               string            `bson:"_id" json:"id"`
	Version          int               `bson:"version" json:"version"`
	Name             string            `bson:"name" json:"name"`
	Parts            []VesselPart      `bson:"parts" json:"parts"`
	Permissions      map[string]string `bson:"permissions" json:"permissions"`
	NoAuthPermission string            `bson:"no_auth_permission" json:"no_auth_permission"`
}

// Part returns the part with the given id, or nil.
func (v *Vessel) Part(partID string) *VesselPart {
	for i := range v.Parts {
		if v.Parts[i].ID == partID {
			return &v.Parts[i]
		}
	}
	return nil
}

// StructurallyEqual reports whether two vessel states describe the same
// structure. Version, name and permissions are administrative and do not
// participate in the comparison; only a structural difference warrants a
// new version.
func StructurallyEqual(a, b *Vessel) bool {
	if a.ID != b.ID || len(a.Parts) != len(b.Parts) {
		return false
	}
	for i := range a.Parts {
		if !a.Parts[i].equal(b.Parts[i]) {
			return false
		}
	}
	return true
}
