package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// LoadEventLog reads an EventLog from path, dispatching on extension:
// .json for a human-editable log, .msgpack for the same structure
// packed (§6 "recorded probe log", supplemented with two concrete
// encodings since the distillation never says how one is stored on
// disk).
func LoadEventLog(path string) (*EventLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var log EventLog
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &log); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case ".msgpack":
		if err := msgpack.Unmarshal(data, &log); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: unrecognized event log extension %q", path, ext)
	}
	return &log, nil
}
