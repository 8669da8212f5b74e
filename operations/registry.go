package operations

import (
	"sort"

	"github.com/evergreen-ci/restadmin"
	"github.com/evergreen-ci/restadmin/db"
	"github.com/evergreen-ci/restadmin/rest/model"
	"github.com/evergreen-ci/restadmin/rest/route"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// buildRegistry registers every concrete model declared in the settings.
// Abstract models only describe shared fields and are skipped.
func buildRegistry(settings *restadmin.Settings, store db.Store) (*route.Registry, error) {
	registry := route.NewRegistry(store)

	for _, conf := range settings.Models {
		m, err := conf.Model()
		if err != nil {
			return nil, errors.Wrapf(err, "describing model '%s.%s'", conf.AppLabel, conf.Name)
		}
		if m.Abstract {
			grip.Notice(message.Fields{
				"message": "skipping abstract model",
				"model":   m.Label(),
			})
			continue
		}

		opts := route.Options{}
		if conf.PageSize > 0 {
			opts[route.PageSizeOption] = conf.PageSize
		} else if settings.API.PageSize > 0 {
			opts[route.PageSizeOption] = settings.API.PageSize
		}

		if len(conf.SerializerFields) > 0 {
			serializer, err := model.NewModelSerializer(m, conf.SerializerFields...)
			if err != nil {
				return nil, errors.Wrapf(err, "building serializer for '%s'", m.Label())
			}
			opts[route.SerializerOption] = serializer
		}

		if len(conf.Filter) > 0 {
			keys := make([]string, 0, len(conf.Filter))
			for k := range conf.Filter {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			q := db.All(m)
			for _, k := range keys {
				q = q.Where(k, conf.Filter[k])
			}
			opts[route.QuerysetOption] = q
		}

		if err = registry.Register(nil, opts, m); err != nil {
			return nil, errors.Wrapf(err, "registering '%s'", m.Label())
		}
	}

	return registry, nil
}

// selectModels narrows the configured models to the given labels. An empty
// selection keeps them all.
func selectModels(settings *restadmin.Settings, labels []string) ([]restadmin.ModelConfig, error) {
	if len(labels) == 0 {
		return settings.Models, nil
	}

	byLabel := map[string]restadmin.ModelConfig{}
	for _, conf := range settings.Models {
		m, err := conf.Model()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		byLabel[m.Label()] = conf
	}

	out := make([]restadmin.ModelConfig, 0, len(labels))
	catcher := grip.NewBasicCatcher()
	for _, label := range labels {
		conf, ok := byLabel[label]
		if !ok {
			catcher.Errorf("model '%s' is not configured", label)
			continue
		}
		out = append(out, conf)
	}

	return out, catcher.Resolve()
}
