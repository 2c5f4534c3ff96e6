// Package manifest reads the plugin lock file maintained by the editor's
// package manager and turns it into a plugin inventory. The file is a JSON
// object keyed by plugin name; values carry version and commit pins.
package manifest

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/odvcencio/spyglass/pkg/errs"
	"github.com/odvcencio/spyglass/pkg/snapshot"
)

// entry mirrors one lock-file record. Package managers write extra keys
// alongside these; unknown keys are ignored.
type entry struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Branch  string `json:"branch"`
}

// Load parses the lock file at path into a name-sorted plugin inventory.
// A missing or unreadable file is an error; callers treat any error as
// field absence.
func Load(path string, limit int) ([]snapshot.Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeManifestParse, "failed to read plugin lock file").WithContext("path", path)
	}
	return Parse(data, limit)
}

// Parse decodes lock-file bytes. Managers that pin by branch rather than
// release use the branch as the version. limit caps the inventory when
// positive; entries are sorted by name first so truncation is stable.
func Parse(data []byte, limit int) ([]snapshot.Plugin, error) {
	var locked map[string]entry
	if err := json.Unmarshal(data, &locked); err != nil {
		return nil, errs.Wrap(err, errs.CodeManifestParse, "failed to parse plugin lock file")
	}

	plugins := make([]snapshot.Plugin, 0, len(locked))
	for name, e := range locked {
		version := e.Version
		if version == "" {
			version = e.Branch
		}
		plugins = append(plugins, snapshot.Plugin{
			Name:    name,
			Version: version,
			Commit:  e.Commit,
		})
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name < plugins[j].Name })

	if limit > 0 && len(plugins) > limit {
		plugins = plugins[:limit]
	}
	return plugins, nil
}
