package kb

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/globe-scale/model"
)

// modeTableFile is the on-disk YAML shape of a mode table:
//
//	modes:
//	  - name: population
//	    scale_kind: AREA_PRESERVING
//	    length_is_radius: false
type modeTableFile struct {
	Modes []model.Mode `yaml:"modes"`
}

// LoadModeTable reads a YAML mode table from r and replaces the contents
// of t with it. The table is untouched on any error.
func LoadModeTable(t *ModeTable, r io.Reader) (int, error) {
	if t == nil {
		return 0, errors.New("nil mode table")
	}

	var file modeTableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: empty mode table", ErrModeInvalid)
		}
		return 0, fmt.Errorf("decode mode table: %w", err)
	}
	if len(file.Modes) == 0 {
		return 0, fmt.Errorf("%w: mode table lists no modes", ErrModeInvalid)
	}

	if err := t.Replace(file.Modes); err != nil {
		return 0, err
	}
	return len(file.Modes), nil
}
