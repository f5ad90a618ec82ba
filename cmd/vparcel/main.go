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

// Command vparcel is a command-line interface and HTTP server for the
// vparcel virtual parcel engine.
package main

import (
	"os"
	"time"

	"github.com/flurpilot/vparcel/vparcelutil"
	"github.com/sirupsen/logrus"
)

func init() {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
}

func main() {
	if err := vparcelutil.Root.Execute(); err != nil {
		os.Exit(1)
	}
}
