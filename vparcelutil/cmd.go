/*
Copyright © 2026 the vparcel authors.
This file is part of vparcel.

vparcel is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

vparcel is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with vparcel.  If not, see <http://www.gnu.org/licenses/>.
*/

package vparcelutil

import (
	"fmt"
	"io"
	"os"

	"github.com/flurpilot/vparcel"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	engineFlags := func() []*pflag.FlagSet {
		return []*pflag.FlagSet{computeCmd.Flags(), serveCmd.Flags()}
	}
	def := vparcel.DefaultConfig()
	srv := DefaultServerConfig()

	// Options are the configuration options available to vparcel.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages to print:
              one of debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Epsilon",
			usage: `
              Epsilon is the snapping grid size and coincidence tolerance
              in working coordinate units. Use something like 1e-9 for
              longitude/latitude degrees and 1e-6 for projected meters.`,
			defaultVal: def.Epsilon,
			flagsets:   engineFlags(),
		},
		{
			name: "EpsilonGrowth",
			usage: `
              EpsilonGrowth is the factor Epsilon is multiplied by each
              time a clipping attempt gives an inconsistent result.`,
			defaultVal: def.EpsilonGrowth,
			flagsets:   engineFlags(),
		},
		{
			name: "MaxAttempts",
			usage: `
              MaxAttempts is the number of clipping attempts before
              giving up with a NumericInstability error.`,
			defaultVal: def.MaxAttempts,
			flagsets:   engineFlags(),
		},
		{
			name: "MinRingArea",
			usage: `
              MinRingArea is the area at or below which rings are
              considered slivers and dropped.`,
			defaultVal: def.MinRingArea,
			flagsets:   engineFlags(),
		},
		{
			name: "MaxVertices",
			usage: `
              MaxVertices is the maximum total number of input vertices.
              Zero means no limit.`,
			defaultVal: def.MaxVertices,
			flagsets:   engineFlags(),
		},
		{
			name: "MaxObstructions",
			usage: `
              MaxObstructions is the maximum number of obstructions.
              Zero means no limit.`,
			defaultVal: def.MaxObstructions,
			flagsets:   engineFlags(),
		},
		{
			name: "InputSR",
			usage: `
              InputSR is the proj4 spatial reference of the input
              coordinates. If it is set, WorkingSR must be set too.`,
			defaultVal: "",
			flagsets:   engineFlags(),
		},
		{
			name: "WorkingSR",
			usage: `
              WorkingSR is the proj4 spatial reference the calculation is
              performed in. Net areas are reported in its units.`,
			defaultVal: "",
			flagsets:   engineFlags(),
		},
		{
			name: "Clipper",
			usage: `
              Clipper is the backend used for boolean operations. polyclip
              is always available; geos requires building with the geos tag.`,
			defaultVal: "polyclip",
			flagsets:   engineFlags(),
		},
		{
			name: "request",
			usage: `
              request is the path to a JSON request file holding
              field_block_geometry and building_geometries. Use "-" to
              read the request from standard input.`,
			shorthand:  "r",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{computeCmd.Flags()},
		},
		{
			name: "field",
			usage: `
              field is the path to a GeoJSON file holding the field block
              polygon. It is used when request is not set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{computeCmd.Flags()},
		},
		{
			name: "buildings",
			usage: `
              buildings is a list of paths to GeoJSON files holding
              building polygons or multipolygons.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{computeCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output is the path the response is written to. The default
              is standard output.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{computeCmd.Flags()},
		},
		{
			name: "ServerConfig",
			usage: `
              ServerConfig is the path to an optional TOML file with the
              Address, MaxRequestBytes, ReadHeaderTimeout, WriteTimeout
              and IdleTimeout server settings. Its values take precedence
              over the flags below.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "Address",
			usage: `
              Address is the address the server listens on.`,
			shorthand:  "a",
			defaultVal: srv.Address,
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "MaxRequestBytes",
			usage: `
              MaxRequestBytes is the largest accepted request body.`,
			defaultVal: int(srv.MaxRequestBytes),
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("VPARCEL")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(computeCmd)
	Root.AddCommand(serveCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("vparcel: problem reading configuration file: %v", err)
		}
	}
	lvl, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("vparcel: LogLevel: %v", err)
	}
	logrus.SetLevel(lvl)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "vparcel",
	Short: "Compute virtual parcels.",
	Long: `vparcel computes the usable part of a field block that remains after
building footprints and other fixed obstructions are subtracted from it,
together with its net area.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'VPARCEL_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of the vparcel engine.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("vparcel v%s\n", vparcel.Version)
	},
	DisableAutoGenTag: true,
}

// computeCmd computes a single virtual parcel.
var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute a virtual parcel.",
	Long: `compute subtracts building footprints from a field block. The input is
either a JSON request (--request) or a field block GeoJSON file (--field)
together with any number of building GeoJSON files (--buildings). The
response is written as JSON to --output or standard output. On failure the
error is written in the same place, in JSON form.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := EngineConfig(Cfg)
		if err != nil {
			return err
		}
		e, err := vparcel.Initialize(c)
		if err != nil {
			return err
		}
		out, err := run(e, Cfg.GetString("request"), Cfg.GetString("field"),
			expandStringSlice(Cfg.GetStringSlice("buildings")), cmd.InOrStdin())
		if err != nil {
			out = vparcel.EncodeError(err)
		}
		if werr := writeOutput(Cfg.GetString("output"), cmd.OutOrStdout(), out); werr != nil {
			return werr
		}
		return err
	},
	DisableAutoGenTag: true,
}

// serveCmd starts the HTTP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server.",
	Long: `serve starts an HTTP server with the endpoints
	POST /v1/virtual-parcel: compute a virtual parcel from a JSON request
	GET  /v1/version:        the engine version
	GET  /metrics:           Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := EngineConfig(Cfg)
		if err != nil {
			return err
		}
		e, err := vparcel.Initialize(c)
		if err != nil {
			return err
		}
		sc := DefaultServerConfig()
		sc.Address = Cfg.GetString("Address")
		sc.MaxRequestBytes = int64(Cfg.GetInt("MaxRequestBytes"))
		if path := Cfg.GetString("ServerConfig"); path != "" {
			if err := ReadServerConfig(path, sc); err != nil {
				return err
			}
		}
		metrics, err := NewCollector(nil)
		if err != nil {
			return err
		}
		s := NewServer(e, metrics, sc)
		logrus.WithField("address", sc.Address).Info("vparcel: listening")
		return s.HTTPServer(sc).ListenAndServe()
	},
	DisableAutoGenTag: true,
}

// writeOutput writes b to the file at path, or to w if path is empty.
func writeOutput(path string, w io.Writer, b []byte) error {
	if path != "" {
		f, err := os.Create(os.ExpandEnv(path))
		if err != nil {
			return fmt.Errorf("vparcel: creating output file: %v", err)
		}
		w = f
		defer f.Close()
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("vparcel: writing output: %v", err)
	}
	return nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}
