package pipeline

import (
	"strings"

	"github.com/amishk599/jobpipe/internal/model"
)

// Stage names a pipeline stage.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageNormalize Stage = "normalize"
	StagePersist   Stage = "persist"
)

var stageOrder = map[Stage]int{
	StageFetch:     0,
	StageNormalize: 1,
	StagePersist:   2,
}

// Selection is the subset of stages a run executes.
type Selection struct {
	Fetch     bool
	Normalize bool
	Persist   bool
}

// Named modes.
var modes = map[string]Selection{
	"full":              {Fetch: true, Normalize: true, Persist: true},
	"fetch-only":        {Fetch: true},
	"normalize-only":    {Normalize: true},
	"persist-only":      {Persist: true},
	"fetch-normalize":   {Fetch: true, Normalize: true},
	"normalize-persist": {Normalize: true, Persist: true},
}

// ModeNames lists the accepted mode names.
func ModeNames() []string {
	return []string{"full", "fetch-only", "normalize-only", "persist-only", "fetch-normalize", "normalize-persist"}
}

// ParseMode maps a mode name to its Selection.
func ParseMode(name string) (Selection, error) {
	sel, ok := modes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Selection{}, model.Configurationf("unknown mode %q (want one of %s)", name, strings.Join(ModeNames(), ", "))
	}
	return sel, nil
}

// Validate rejects empty and non-contiguous selections. Persisting raw
// records without normalizing them is never allowed.
func (s Selection) Validate() error {
	if !s.Fetch && !s.Normalize && !s.Persist {
		return model.Configurationf("no stage selected")
	}
	if s.Fetch && s.Persist && !s.Normalize {
		return model.Configurationf("fetch and persist require normalize")
	}
	return nil
}

func (s Selection) String() string {
	for name, sel := range modes {
		if sel == s {
			return name
		}
	}
	var parts []string
	if s.Fetch {
		parts = append(parts, string(StageFetch))
	}
	if s.Normalize {
		parts = append(parts, string(StageNormalize))
	}
	if s.Persist {
		parts = append(parts, string(StagePersist))
	}
	return strings.Join(parts, "+")
}
