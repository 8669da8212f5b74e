package operations

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
	"github.com/evergreen-ci/restadmin"
	"github.com/evergreen-ci/restadmin/db"
	"github.com/evergreen-ci/restadmin/rest/route"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Routes prints the route table the service would mount.
func Routes() cli.Command {
	return cli.Command{
		Name:    "routes",
		Usage:   "list the routes generated for the configured models",
		Aliases: []string{"urls"},
		Flags:   settingsFlags(),
		Before:  requireFileExists(settingsFlagName),
		Action: func(c *cli.Context) error {
			settings, err := loadSettings(c.String(settingsFlagName))
			if err != nil {
				return errors.WithStack(err)
			}

			return printRoutes(os.Stdout, settings)
		},
	}
}

// Docs prints the generated Markdown documentation of the configured
// models.
func Docs() cli.Command {
	return cli.Command{
		Name:   "docs",
		Usage:  "print the API documentation of the configured models",
		Flags:  settingsFlags(modelFlag()...),
		Before: requireFileExists(settingsFlagName),
		Action: func(c *cli.Context) error {
			settings, err := loadSettings(c.String(settingsFlagName))
			if err != nil {
				return errors.WithStack(err)
			}

			return printDocs(os.Stdout, settings, c.StringSlice(modelFlagName))
		},
	}
}

func loadSettings(path string) (*restadmin.Settings, error) {
	settings, err := restadmin.NewSettings(path)
	if err != nil {
		return nil, errors.Wrap(err, "loading settings")
	}
	if err = settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating settings")
	}
	return settings, nil
}

func printRoutes(w io.Writer, settings *restadmin.Settings) error {
	// the route table does not touch the store
	registry, err := buildRegistry(settings, db.NewMemoryStore())
	if err != nil {
		return errors.WithStack(err)
	}

	routes, app, namespace, err := registry.URLs()
	if err != nil {
		return errors.Wrap(err, "assembling routes")
	}

	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("Method", "Path", "Name", "Action")
	for _, r := range routes {
		t.AddLine(r.Method, settings.API.Prefix+r.Path, r.Name, r.Action)
	}
	fmt.Fprintf(w, "%d routes in %s (namespace %s):\n", len(routes), app, namespace)
	t.Print()

	return nil
}

func printDocs(w io.Writer, settings *restadmin.Settings, labels []string) error {
	models, err := selectModels(settings, labels)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, conf := range models {
		m, err := conf.Model()
		if err != nil {
			return errors.WithStack(err)
		}
		if m.Abstract {
			continue
		}

		fmt.Fprintf(w, "## %s\n\n%s\n", m.Label(), route.GenerateDocs(m))
	}

	return nil
}
