/*
Copyright © 2024 the GeoCDL authors.
This file is part of GeoCDL.

GeoCDL is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GeoCDL is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GeoCDL.  If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"fmt"
	"html/template"
	"log"
	"os"
	"time"

	"github.com/ctessum/gobra"
	"github.com/lnashier/viper"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds the command-line/config-file/environment configuration for
// the geocdlserver binary, layered command-line flags over a config
// file over defaults via viper.
type Cfg struct {
	*viper.Viper

	Root, serveCmd, serveUICmd, cleanCacheCmd, listDatasetsCmd *cobra.Command
}

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig builds the Root command and its subcommands, wires up
// viper-backed configuration, and registers every flag in options against
// the flagsets that should carry it, using a single options table shared
// across every subcommand's flag set.
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "geocdlserver",
		Short: "A common data library server for geospatial datasets.",
		Long: `geocdlserver serves the Geospatial Common Data Library (GeoCDL) API: a
single HTTP endpoint for requesting spatially and temporally subsetted,
harmonized data drawn from multiple geospatial datasets.

Configuration can be provided via command-line flags, a configuration
file (set with --config), or environment variables prefixed GEOCDL_.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setConfig(cfg)
		},
	}

	cfg.serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the GeoCDL HTTP API server.",
		Long:  "serve starts the GeoCDL HTTP API, listening until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Serve(
				cfg.GetString("addr"),
				cfg.GetString("catalog"),
				cfg.GetString("output-dir"),
				cfg.GetString("upload-cache-dir"),
				cfg.GetInt64("upload-max-bytes"),
				time.Duration(cfg.GetInt("upload-ttl-hours"))*time.Hour,
			)
		},
		DisableAutoGenTag: true,
	}

	cfg.serveUICmd = &cobra.Command{
		Use:   "serve-ui",
		Short: "Start a browser-based configuration form for geocdlserver.",
		Long: `serve-ui starts a local web form, generated from this CLI's own flags,
for composing a geocdlserver configuration without hand-editing a file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return StartWebServer(cfg)
		},
		DisableAutoGenTag: true,
	}

	cfg.cleanCacheCmd = &cobra.Command{
		Use:   "clean-cache",
		Short: "Remove expired uploaded subset geometries from the upload cache.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return CleanCache(cfg.GetString("upload-cache-dir"), time.Duration(cfg.GetInt("upload-ttl-hours"))*time.Hour)
		},
		DisableAutoGenTag: true,
	}

	cfg.listDatasetsCmd = &cobra.Command{
		Use:   "list-datasets",
		Short: "List the datasets registered in the catalog.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ListDatasets(cfg.GetString("catalog"))
		},
		DisableAutoGenTag: true,
	}

	cfg.Root.AddCommand(cfg.serveCmd, cfg.serveUICmd, cfg.cleanCacheCmd, cfg.listDatasetsCmd)

	cfg.SetEnvPrefix("GEOCDL")
	cfg.AutomaticEnv()

	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name:       "config",
			usage:      "config specifies the configuration file location.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name:       "addr",
			usage:      "addr specifies the address the HTTP API listens on.",
			defaultVal: "localhost:8080",
			flagsets:   []*pflag.FlagSet{cfg.serveCmd.Flags()},
		},
		{
			name:       "catalog",
			usage:      "catalog specifies the path to the dataset catalog configuration file.",
			defaultVal: "catalog.json",
			flagsets:   []*pflag.FlagSet{cfg.serveCmd.Flags(), cfg.listDatasetsCmd.Flags()},
		},
		{
			name:       "output-dir",
			usage:      "output-dir specifies the directory request output archives are staged under.",
			defaultVal: os.TempDir(),
			flagsets:   []*pflag.FlagSet{cfg.serveCmd.Flags()},
		},
		{
			name:       "upload-cache-dir",
			usage:      "upload-cache-dir specifies the directory uploaded subset geometries are cached under.",
			defaultVal: os.TempDir(),
			flagsets:   []*pflag.FlagSet{cfg.serveCmd.Flags(), cfg.cleanCacheCmd.Flags()},
		},
		{
			name:       "upload-max-bytes",
			usage:      "upload-max-bytes caps the size of a single uploaded subset geometry file.",
			defaultVal: int64(10 << 20),
			flagsets:   []*pflag.FlagSet{cfg.serveCmd.Flags()},
		},
		{
			name:       "upload-ttl-hours",
			usage:      "upload-ttl-hours specifies how many hours an uploaded subset geometry is retained before being eligible for cleanup.",
			defaultVal: 4,
			flagsets:   []*pflag.FlagSet{cfg.serveCmd.Flags(), cfg.cleanCacheCmd.Flags()},
		},
	}

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 {
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.String(option.name, v, option.usage)
			case int:
				set.Int(option.name, v, option.usage)
			case int64:
				set.Int64(option.name, v, option.usage)
			default:
				panic(fmt.Errorf("geocdlserver: invalid option default type: %T", option.defaultVal))
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	return cfg
}

func setConfig(cfg *Cfg) error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(cfgpath)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("geocdlserver: reading configuration file: %v", err)
		}
	}
	return nil
}

// StartWebServer starts a gobra-generated configuration form for the
// geocdlserver CLI: every flag on Root and its subcommands becomes a
// form field, and submitting the form runs the corresponding command.
func StartWebServer(cfg *Cfg) error {
	setConfig(cfg)

	const address = "localhost:8181"
	const tmpl = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>GeoCDL</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 700px; margin: 0 auto; padding: 10px; }
	</style>
</head>
<body>
<div class="container">
	<h1>GeoCDL</h1>
	<p>Configure and start the GeoCDL server below.</p>
	<div>
		{{.}}
	</div>
</div>
</body>
</html>`

	output := template.Must(template.New("").Parse(tmpl))
	server := gobra.Server{Root: cfg.Root, ServerAddress: address, AllowCORS: false, HTML: output}
	log.Println("geocdlserver configuration UI starting...")
	open.Run("http://" + address)
	fmt.Println("If not opened automatically, please visit http://" + address)
	server.Start()
	return nil
}
