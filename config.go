package lurk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of the proving pipeline
type Config map[string]*cfgVal

// NewConfig creates a new configuration object primed with all the
// default values expected by the evaluator and the folding driver.
func NewConfig() *Config {
	m := make(Config)
	m.SetInt("prover.reduction-count", 10)
	m.SetBool("prover.abomonated", false)
	m.SetInt("eval.limit", 100_000)
	m.SetString("params.dir", DefaultParamsDir)
	m.SetString("log.level", "info")
	return &m
}

// LoadConfigFile layers the values of a YAML file over the defaults. The
// file holds one section per key prefix:
//
//	prover:
//	  reduction-count: 100
//	eval:
//	  limit: 100000
func LoadConfigFile(path string) (*Config, error) {
	cfg := NewConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sections map[string]map[string]any
	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return nil, err
	}
	for section, values := range sections {
		for key, value := range values {
			path := section + "." + key
			switch v := value.(type) {
			case bool:
				cfg.SetBool(path, v)
			case int:
				cfg.SetInt(path, v)
			case string:
				cfg.SetString(path, v)
			default:
				return nil, fmt.Errorf("config: unsupported value for `%s`: %v", path, value)
			}
		}
	}
	return cfg, nil
}

type cfgValType int

const (
	cfgValType_Undefined cfgValType = iota
	cfgValType_Bool
	cfgValType_Int
	cfgValType_String
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValType_Undefined: "undefined",
		cfgValType_Bool:      "bool",
		cfgValType_Int:       "int",
		cfgValType_String:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

// assignType is mostly for preventing programming errors, it
func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValType_Undefined {
		panic(fmt.Sprintf("Can't assign `%s` to type `%s`", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("Can't retrieve `%s` from `%s` variable", vt, v.typ))
	}
}

func (c *Config) val(path string) *cfgVal {
	v, ok := (*c)[path]
	if !ok {
		v = &cfgVal{}
		(*c)[path] = v
	}
	return v
}

// SetBool assigns a boolean to a config path
func (c *Config) SetBool(path string, value bool) {
	v := c.val(path)
	v.assignType(cfgValType_Bool)
	v.asBool = value
}

// GetBool retrieves the boolean under a config path
func (c *Config) GetBool(path string) bool {
	v := c.val(path)
	v.checkType(cfgValType_Bool)
	return v.asBool
}

// SetInt assigns an integer to a config path
func (c *Config) SetInt(path string, value int) {
	v := c.val(path)
	v.assignType(cfgValType_Int)
	v.asInt = value
}

// GetInt retrieves the integer under a config path
func (c *Config) GetInt(path string) int {
	v := c.val(path)
	v.checkType(cfgValType_Int)
	return v.asInt
}

// SetString assigns a string to a config path
func (c *Config) SetString(path string, value string) {
	v := c.val(path)
	v.assignType(cfgValType_String)
	v.asString = value
}

// GetString retrieves the string under a config path
func (c *Config) GetString(path string) string {
	v := c.val(path)
	v.checkType(cfgValType_String)
	return v.asString
}
