package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/config"
)

// ConfigCmd inspects and creates configuration files.
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" default:"withargs" help:"Print the effective configuration"`
	Path ConfigPathCmd `cmd:"" help:"List the config files that are read"`
	Init ConfigInitCmd `cmd:"" help:"Write a default configuration file"`
}

// ConfigShowCmd prints the merged configuration.
type ConfigShowCmd struct {
	Format  string `short:"f" enum:"yaml,json" default:"yaml" help:"Output format"`
	Secrets bool   `help:"Print API keys instead of masking them"`
}

func (c *ConfigShowCmd) Run(kctx *kong.Context, cli *CLI) error {
	e, err := setup(cli, config.Overrides{})
	if err != nil {
		return err
	}
	defer e.Close()
	data, err := e.manager.ExportConfig(c.Format, c.Secrets)
	if err != nil {
		return err
	}
	_, err = kctx.Stdout.Write(data)
	return err
}

// ConfigPathCmd prints the config file locations.
type ConfigPathCmd struct{}

func (c *ConfigPathCmd) Run(kctx *kong.Context, cli *CLI) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	disc := config.NewDiscovery(afero.NewOsFs(), wd)
	info := disc.Info(disc.Precedence(cli.ConfigFile))

	tw := tabwriter.NewWriter(kctx.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tEXISTS\tPATH")
	for _, loc := range info.Files {
		fmt.Fprintf(tw, "%s\t%t\t%s\n", loc.Source, loc.Exists, loc.Path)
	}
	fmt.Fprintf(tw, "%s\t\t%s\n", "database", config.DefaultDatabasePath())
	return tw.Flush()
}

// ConfigInitCmd writes the default configuration.
type ConfigInitCmd struct {
	Output   string `short:"o" type:"path" help:"File to write; defaults to the user config file"`
	Provider string `short:"p" help:"Default provider"`
	Force    bool   `help:"Overwrite an existing file"`
}

func (c *ConfigInitCmd) Run(kctx *kong.Context) error {
	path := c.Output
	if path == "" {
		path = config.UserConfigPath()
	}
	return initConfig(afero.NewOsFs(), path, c.Provider, c.Force, kctx.Stdout)
}

func initConfig(fs afero.Fs, path, provider string, force bool, out io.Writer) error {
	if exists, _ := afero.Exists(fs, path); exists && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}
	cfg := config.DefaultConfig()
	if provider != "" {
		cfg.DefaultProvider = provider
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return err
	}
	data, err := config.Marshal(cfg, filepath.Ext(path))
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}
