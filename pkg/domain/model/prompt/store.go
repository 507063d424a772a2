package prompt

import (
	"time"

	"github.com/m-mizutani/komainu/pkg/domain/types"
)

// StoreDocument is the serialized form of the full versioned registry,
// used for export/import and the best-effort persistence flush.
type StoreDocument struct {
	ExportedAt time.Time                     `json:"exported_at"`
	Prompts    map[types.PromptID][]*Version `json:"prompts"`
}

// Clone deep-copies the document so registry internals never leak
func (d *StoreDocument) Clone() *StoreDocument {
	if d == nil {
		return nil
	}

	clone := &StoreDocument{
		ExportedAt: d.ExportedAt,
		Prompts:    make(map[types.PromptID][]*Version, len(d.Prompts)),
	}
	for id, versions := range d.Prompts {
		copied := make([]*Version, len(versions))
		for i, v := range versions {
			copied[i] = v.Clone()
		}
		clone.Prompts[id] = copied
	}

	return clone
}
