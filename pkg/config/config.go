// Package config handles tier1.toml compiler configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"tier1/pkg/native"
	"tier1/pkg/opcode"
)

// Config is a tier1.toml file.
type Config struct {
	JIT   JIT   `toml:"jit"`
	Arena Arena `toml:"arena"`
}

// JIT configures the compiler.
type JIT struct {
	Debug bool `toml:"debug"`

	// EnabledOpcodes, when set, limits compilation to these instructions.
	EnabledOpcodes  []string `toml:"enabled_opcodes"`
	DisabledOpcodes []string `toml:"disabled_opcodes"`
}

// Arena sizes the native memory used for VM records and native stacks.
type Arena struct {
	Size      int `toml:"size"`
	StackSize int `toml:"stack_size"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Arena: Arena{
			Size:      native.DefaultArenaSize,
			StackSize: native.DefaultStackSize,
		},
	}
}

// Load parses path on top of the defaults and validates the result. Unknown
// keys are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a configuration document.
func Parse(doc string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(doc, c)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if _, err := opcode.ParseSet(c.JIT.EnabledOpcodes); err != nil {
		result = multierror.Append(result, fmt.Errorf("jit.enabled_opcodes: %w", err))
	}
	if _, err := opcode.ParseSet(c.JIT.DisabledOpcodes); err != nil {
		result = multierror.Append(result, fmt.Errorf("jit.disabled_opcodes: %w", err))
	}
	if c.Arena.StackSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("arena.stack_size must be positive, got %d", c.Arena.StackSize))
	}
	if c.Arena.Size < c.Arena.StackSize {
		result = multierror.Append(result, fmt.Errorf("arena.size %d is smaller than arena.stack_size %d", c.Arena.Size, c.Arena.StackSize))
	}
	return result.ErrorOrNil()
}

// Opcodes narrows base, the instructions the emitter can compile, to the
// configured set. The configuration must be valid.
func (c *Config) Opcodes(base *opcode.Set) *opcode.Set {
	disabled, _ := opcode.ParseSet(c.JIT.DisabledOpcodes)
	set := base.Without(disabled)
	if len(c.JIT.EnabledOpcodes) > 0 {
		enabled, _ := opcode.ParseSet(c.JIT.EnabledOpcodes)
		set = set.Intersect(enabled)
	}
	return set
}
