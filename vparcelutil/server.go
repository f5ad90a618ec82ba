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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/flurpilot/vparcel"
	"github.com/flurpilot/vparcel/internal/hash"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ServerConfig holds the settings of the HTTP server. It can be read from
// a TOML file.
type ServerConfig struct {
	Address           string
	MaxRequestBytes   int64
	ReadHeaderTimeout duration
	WriteTimeout      duration
	IdleTimeout       duration
}

// duration is a time.Duration that can be decoded from strings such
// as "5s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// DefaultServerConfig returns the default server settings.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:           ":8080",
		MaxRequestBytes:   10 << 20,
		ReadHeaderTimeout: duration{5 * time.Second},
		WriteTimeout:      duration{60 * time.Second},
		IdleTimeout:       duration{120 * time.Second},
	}
}

// ReadServerConfig overrides the fields of c with the values in the TOML
// file at path.
func ReadServerConfig(path string, c *ServerConfig) error {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return fmt.Errorf("vparcel: opening server configuration: %v", err)
	}
	defer f.Close()
	if _, err = toml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("vparcel: reading server configuration: %v", err)
	}
	if c.MaxRequestBytes <= 0 {
		return fmt.Errorf("vparcel: MaxRequestBytes=%d but should be >0", c.MaxRequestBytes)
	}
	return nil
}

// Server is an HTTP interface to a vparcel.Engine.
type Server struct {
	// Log receives a record of each request.
	Log logrus.FieldLogger

	engine   *vparcel.Engine
	metrics  *Collector
	maxBytes int64
	router   *mux.Router
}

// NewServer creates a server that computes virtual parcels with e.
// metrics may be nil.
func NewServer(e *vparcel.Engine, metrics *Collector, c *ServerConfig) *Server {
	s := &Server{
		Log:      logrus.StandardLogger(),
		engine:   e,
		metrics:  metrics,
		maxBytes: c.MaxRequestBytes,
		router:   mux.NewRouter(),
	}
	s.router.HandleFunc("/v1/virtual-parcel", s.compute).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/version", s.version).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return s
}

// HTTPServer returns an http.Server that serves s with the settings in c.
func (s *Server) HTTPServer(c *ServerConfig) *http.Server {
	return &http.Server{
		Addr:              c.Address,
		Handler:           s,
		ReadHeaderTimeout: c.ReadHeaderTimeout.Duration,
		WriteTimeout:      c.WriteTimeout.Duration,
		IdleTimeout:       c.IdleTimeout.Duration,
		MaxHeaderBytes:    1 << 20,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"engine_version": vparcel.Version})
}

func (s *Server) compute(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	w.Header().Set("X-Request-Id", id)
	w.Header().Set("Content-Type", "application/json")
	log := s.Log.WithField("request", id)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = &vparcel.GeometryError{
				Kind:   vparcel.ResourceLimitExceeded,
				Role:   vparcel.RoleRequest,
				Index:  -1,
				Ring:   -1,
				Reason: fmt.Sprintf("request body larger than %d bytes", s.maxBytes),
				Err:    err,
			}
		} else {
			err = &vparcel.GeometryError{
				Kind:   vparcel.InvalidRequest,
				Role:   vparcel.RoleRequest,
				Index:  -1,
				Ring:   -1,
				Reason: "reading request body",
				Err:    err,
			}
		}
		s.metrics.Observe(outcome(err), 0, 0, false)
		log.WithError(err).Warn("vparcel: request rejected")
		writeError(w, err)
		return
	}

	start := time.Now()
	out, err := s.engine.ComputeJSON(body)
	d := time.Since(start)
	log = log.WithFields(logrus.Fields{
		"input":    hash.Bytes(body),
		"duration": d,
	})
	if err != nil {
		s.metrics.Observe(outcome(err), d, 0, false)
		log.WithError(err).Info("vparcel: computation failed")
		writeError(w, err)
		return
	}
	var resp vparcel.Response
	if jerr := json.Unmarshal(out, &resp); jerr == nil {
		s.metrics.Observe(outcome(nil), d, resp.NetAreaM2, true)
		log = log.WithFields(logrus.Fields{
			"net_area": resp.NetAreaM2,
			"polygons": resp.PolygonCount,
		})
	}
	log.Info("vparcel: computed virtual parcel")
	w.Write(out)
}

func writeError(w http.ResponseWriter, err error) {
	w.WriteHeader(statusCode(err))
	w.Write(vparcel.EncodeError(err))
}

// statusCode returns the HTTP status for a failed computation.
func statusCode(err error) int {
	switch {
	case errors.Is(err, vparcel.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, vparcel.ErrResourceLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, vparcel.ErrInvalidGeometry), errors.Is(err, vparcel.ErrNumericInstability):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// outcome is the metrics label for err.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var ge *vparcel.GeometryError
	if errors.As(err, &ge) {
		return ge.Kind.String()
	}
	return "Internal"
}
