package operations

import (
	"os"
	"strings"

	"github.com/evergreen-ci/restadmin"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const (
	settingsFlagName = "settings"
	modelFlagName    = "model"
)

func joinFlagNames(ids ...string) string { return strings.Join(ids, ", ") }

func settingsFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:   joinFlagNames(settingsFlagName, "conf", "c"),
		Usage:  "path to the service settings file",
		EnvVar: restadmin.SettingsPathEnv,
		Value:  restadmin.DefaultSettingsFile,
	})
}

func modelFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringSliceFlag{
		Name:  joinFlagNames(modelFlagName, "m"),
		Usage: "limit output to the model with this label (app_label.model_name); may specify more than once",
	})
}

////////////////////////////////////////////////////////////////////////
//
// Before hooks

func mergeBeforeFuncs(ops ...cli.BeforeFunc) cli.BeforeFunc {
	return func(c *cli.Context) error {
		for _, op := range ops {
			if err := op(c); err != nil {
				return err
			}
		}
		return nil
	}
}

func requireFileExists(name string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		path := c.String(name)
		if path == "" {
			return errors.Errorf("must specify a value for --%s", name)
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			return errors.Errorf("settings file '%s' does not exist", path)
		}

		return nil
	}
}
