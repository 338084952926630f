package descriptor

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/cruciblehq/eosimg/internal/image"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Supported descriptor schema version.
const SchemaVersion = 1

// Name of the default descriptor inside the embedded assets.
const defaultName = "ceos.yaml"

//go:embed assets
var assets embed.FS

// Configuration layered onto an imported base image.
type Descriptor struct {
	Schema       int      `yaml:"schema" validate:"eq=1"`                // Descriptor schema version.
	Name         string   `yaml:"name" validate:"required"`              // Repository of the final image.
	Intermediate string   `yaml:"intermediate" validate:"required"`      // Repository prefix of the imported base image.
	Args         Args     `yaml:"args"`                                  // Names of the build arguments.
	From         string   `yaml:"from" validate:"required"`              // Base image reference, may reference build arguments.
	Env          []EnvVar `yaml:"env" validate:"dive"`                   // Guest environment, in declaration order.
	Expose       []Port   `yaml:"expose" validate:"dive"`                // Exposed ports.
	Volumes      []string `yaml:"volumes" validate:"dive,startswith=/"`  // Volume mount points.
	Files        []File   `yaml:"files" validate:"dive"`                 // Files copied into the guest.
	Init         string   `yaml:"init" validate:"required,startswith=/"` // Guest init binary.

	fsys fs.FS // Source of overlay file payloads.
}

// Names of the two build arguments that parameterize the base reference.
type Args struct {
	Image   string `yaml:"image" validate:"required"`
	Version string `yaml:"version" validate:"required,nefield=Image"`
}

// A guest environment variable.
type EnvVar struct {
	Name  string `yaml:"name" validate:"required,excludes=="`
	Value string `yaml:"value"`
}

// An exposed port.
type Port struct {
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	Protocol string `yaml:"protocol" validate:"oneof=tcp udp"`
}

// Returns the port in OCI notation (e.g., "22/tcp").
func (p Port) String() string {
	return strconv.Itoa(p.Port) + "/" + p.Protocol
}

// A file copied into the guest.
type File struct {
	Source string      `yaml:"source" validate:"required"`              // Path relative to the descriptor.
	Dest   string      `yaml:"dest" validate:"required,startswith=/"`   // Absolute path in the guest.
	Mode   fs.FileMode `yaml:"mode"`                                    // Permission bits, 0644 when unset.
}

// Permission bits applied to the file in the guest.
func (f File) Perm() fs.FileMode {
	if f.Mode == 0 {
		return 0644
	}
	return f.Mode.Perm()
}

var loadDefault = sync.OnceValues(func() (*Descriptor, error) {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		return nil, err
	}
	return Load(sub, defaultName)
})

// Returns the descriptor bundled with the binary.
func Default() (*Descriptor, error) {
	return loadDefault()
}

// Loads and validates a descriptor from fsys.
//
// Overlay file sources are resolved against fsys, relative to the directory
// holding the descriptor, and must exist.
func Load(fsys fs.FS, name string) (*Descriptor, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDescriptor, name, err)
	}

	d.fsys = fsys
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDescriptor, name, err)
	}

	return &d, nil
}

// Checks struct constraints, the base reference and overlay payloads.
func (d *Descriptor) validate() error {
	if err := validator.New().Struct(d); err != nil {
		return err
	}

	// The base reference must resolve once both arguments are supplied.
	if _, err := d.BaseRef(map[string]string{d.Args.Image: "base", d.Args.Version: "latest"}); err != nil {
		return err
	}

	for _, f := range d.Files {
		if _, err := fs.Stat(d.fsys, f.Source); err != nil {
			return fmt.Errorf("overlay %s: %w", f.Source, err)
		}
	}

	return nil
}

// Returns the build arguments that point the descriptor at base.
func (d *Descriptor) BuildArgs(base image.Ref) map[string]string {
	return map[string]string{
		d.Args.Image:   base.Name,
		d.Args.Version: base.Tag,
	}
}

// Expands the base reference with the given build arguments.
//
// Every ${VAR} in the reference must be present in args.
func (d *Descriptor) BaseRef(args map[string]string) (image.Ref, error) {
	var missing []string
	expanded := os.Expand(d.From, func(key string) string {
		v, ok := args[key]
		if !ok {
			missing = append(missing, key)
		}
		return v
	})
	if len(missing) > 0 {
		return image.Ref{}, fmt.Errorf("%w: %v", ErrUndefinedArg, missing)
	}
	return image.ParseRef(expanded)
}

// Formats the guest environment as "key=value" strings.
func (d *Descriptor) Environ() []string {
	return lo.Map(d.Env, func(e EnvVar, _ int) string {
		return e.Name + "=" + e.Value
	})
}

// Returns the init command line.
//
// The init binary receives one systemd.setenv argument per environment
// variable so that services started by init see the same environment as
// the container's first process.
func (d *Descriptor) Command() []string {
	setenv := lo.Map(d.Env, func(e EnvVar, _ int) string {
		return "systemd.setenv=" + e.Name + "=" + e.Value
	})
	return append([]string{d.Init}, setenv...)
}

// Returns the exposed ports as an OCI port set.
func (d *Descriptor) PortSet() map[string]struct{} {
	return lo.SliceToMap(d.Expose, func(p Port) (string, struct{}) {
		return p.String(), struct{}{}
	})
}

// Returns the volumes as an OCI volume set.
func (d *Descriptor) VolumeSet() map[string]struct{} {
	return lo.SliceToMap(d.Volumes, func(v string) (string, struct{}) {
		return v, struct{}{}
	})
}

// Reads the payload of an overlay file.
func (d *Descriptor) Overlay(f File) ([]byte, error) {
	return fs.ReadFile(d.fsys, f.Source)
}
