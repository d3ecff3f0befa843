// Package module defines the on-disk shape of an analysis module: a
// directory holding a configuration unit, a data-model unit and an engine
// unit under fixed file names.
package module

import (
	"os"
	"path/filepath"
)

// Unit names one of the three files every module directory must provide.
type Unit string

const (
	UnitConfig Unit = "config"
	UnitModel  Unit = "model"
	UnitEngine Unit = "engine"
)

// Fixed file names inside a module directory.
const (
	ConfigFile = "config.hcl"
	ModelFile  = "model.star"
	EngineFile = "engine.star"
)

// Units lists the units in load order.
var Units = []Unit{UnitConfig, UnitModel, UnitEngine}

// FileName returns the fixed file name of the unit.
func (u Unit) FileName() string {
	switch u {
	case UnitConfig:
		return ConfigFile
	case UnitModel:
		return ModelFile
	case UnitEngine:
		return EngineFile
	}
	return ""
}

// Descriptor is the identity and layout of one module directory.
type Descriptor struct {
	Name        string
	RootPath    string
	ConfigPath  string
	ModelPath   string
	EnginePath  string
	Description string
}

// NewDescriptor builds a descriptor for the module directory at root. The
// module name is the directory's base name.
func NewDescriptor(root string) *Descriptor {
	return &Descriptor{
		Name:       filepath.Base(root),
		RootPath:   root,
		ConfigPath: filepath.Join(root, ConfigFile),
		ModelPath:  filepath.Join(root, ModelFile),
		EnginePath: filepath.Join(root, EngineFile),
	}
}

// Path returns the file path of the given unit.
func (d *Descriptor) Path(u Unit) string {
	switch u {
	case UnitConfig:
		return d.ConfigPath
	case UnitModel:
		return d.ModelPath
	case UnitEngine:
		return d.EnginePath
	}
	return ""
}

// IsValid reports whether all three unit files exist as regular files.
func (d *Descriptor) IsValid() bool {
	return len(d.MissingUnits()) == 0
}

// MissingUnits returns the units whose files are absent, in load order.
func (d *Descriptor) MissingUnits() []Unit {
	var missing []Unit
	for _, u := range Units {
		if !isFile(d.Path(u)) {
			missing = append(missing, u)
		}
	}
	return missing
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
