package restadmin

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/evergreen-ci/restadmin/model"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings is the configuration of a restadmin server.
type Settings struct {
	API      APIConfig     `yaml:"api"`
	Database DBSettings    `yaml:"database"`
	Users    []UserConfig  `yaml:"users"`
	Models   []ModelConfig `yaml:"models"`
	Tracer   TracerConfig  `yaml:"tracer"`
	LogLevel string        `yaml:"log_level"`
}

// APIConfig configures the HTTP service.
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Prefix is prepended to every route, e.g. "/api".
	Prefix              string `yaml:"prefix"`
	PageSize            int    `yaml:"page_size"`
	ShutdownWaitSeconds int    `yaml:"shutdown_wait_seconds"`
}

// DBSettings selects and locates the record store.
type DBSettings struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
	DB     string `yaml:"db"`
}

// UserConfig is a user of the naive user manager.
type UserConfig struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	Email       string   `yaml:"email"`
	APIKey      string   `yaml:"api_key"`
	Permissions []string `yaml:"permissions"`
	Superuser   bool     `yaml:"superuser"`
}

// ModelConfig declares a model to register at startup.
type ModelConfig struct {
	AppLabel          string        `yaml:"app_label"`
	Name              string        `yaml:"name"`
	VerboseName       string        `yaml:"verbose_name"`
	VerboseNamePlural string        `yaml:"verbose_name_plural"`
	Abstract          bool          `yaml:"abstract"`
	Fields            []model.Field `yaml:"fields"`

	// SerializerFields limits the exposed fields; empty means all.
	SerializerFields []string `yaml:"serializer_fields"`
	// Filter narrows the records served to those matching every value.
	Filter   map[string]interface{} `yaml:"filter"`
	PageSize int                    `yaml:"page_size"`
}

// Model builds the validated model descriptor.
func (mc ModelConfig) Model() (*model.Model, error) {
	m := &model.Model{
		AppLabel:          mc.AppLabel,
		Name:              mc.Name,
		VerboseName:       mc.VerboseName,
		VerboseNamePlural: mc.VerboseNamePlural,
		Abstract:          mc.Abstract,
		Fields:            append([]model.Field{}, mc.Fields...),
	}
	if err := m.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	return m, nil
}

// NewSettings reads settings from a YAML file. Unknown keys are errors.
func NewSettings(filename string) (*Settings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file '%s'", filename)
	}

	settings, err := ParseSettings(data)
	return settings, errors.Wrapf(err, "parsing settings file '%s'", filename)
}

// ParseSettings decodes settings from YAML.
func ParseSettings(data []byte) (*Settings, error) {
	settings := &Settings{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(settings); err != nil {
		return nil, errors.WithStack(err)
	}
	return settings, nil
}

// Validate checks the settings and fills in defaults.
func (s *Settings) Validate() error {
	catcher := grip.NewBasicCatcher()

	if s.API.Port == 0 {
		s.API.Port = DefaultAPIPort
	}
	catcher.ErrorfWhen(s.API.Port < 0 || s.API.Port > 65535, "invalid API port %d", s.API.Port)
	if s.API.Prefix != "" {
		s.API.Prefix = "/" + strings.Trim(s.API.Prefix, "/")
	}
	catcher.ErrorfWhen(s.API.PageSize < 0 || s.API.PageSize > MaxPageSize,
		"page size must be between 0 and %d", MaxPageSize)
	catcher.NewWhen(s.API.ShutdownWaitSeconds < 0, "shutdown wait cannot be negative")

	if s.Database.Driver == "" {
		s.Database.Driver = DriverMemory
	}
	catcher.ErrorfWhen(!utility.StringSliceContains(Drivers, s.Database.Driver),
		"unknown database driver '%s'", s.Database.Driver)
	if s.Database.Driver != DriverMemory {
		catcher.ErrorfWhen(s.Database.URL == "", "database driver '%s' requires a url", s.Database.Driver)
	}
	if s.Database.Driver == DriverMongoDB && s.Database.DB == "" {
		s.Database.DB = DefaultDatabaseName
	}

	catcher.Wrap(s.Tracer.ValidateAndDefault(), "tracer")

	if s.LogLevel != "" {
		catcher.ErrorfWhen(level.FromString(s.LogLevel) == level.Invalid, "invalid log level '%s'", s.LogLevel)
	}

	users := map[string]bool{}
	for i, u := range s.Users {
		if u.ID == "" {
			catcher.Errorf("user %d has no id", i)
			continue
		}
		catcher.ErrorfWhen(users[u.ID], "user '%s' is defined more than once", u.ID)
		catcher.ErrorfWhen(u.APIKey == "", "user '%s' has no API key", u.ID)
		users[u.ID] = true
	}

	models := map[string]bool{}
	for i := range s.Models {
		m, err := s.Models[i].Model()
		if err != nil {
			catcher.Wrapf(err, "model %d", i)
			continue
		}
		catcher.ErrorfWhen(models[m.Label()], "model '%s' is defined more than once", m.Label())
		catcher.ErrorfWhen(s.Models[i].PageSize < 0, "model '%s' has a negative page size", m.Label())
		models[m.Label()] = true
	}

	return catcher.Resolve()
}

// Address is the listen address of the HTTP service.
func (c APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
