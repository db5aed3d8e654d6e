/*
 * Copyright 2023 Vesplit Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/engine"
	"github.com/vesplit/vesplit/store"
)

// Server exposes the engine's read-only query surface over HTTP. There are
// no mutating endpoints; every mutation enters through the engine API.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	store  *store.Store
	addr   string
	log    log.Logger
}

// New wires the routes. The store is optional; snapshot endpoints return 404
// without one.
func New(e *engine.Engine, s *store.Store, addr string, logger log.Logger) *Server {
	srv := &Server{
		echo:   echo.New(),
		engine: e,
		store:  s,
		addr:   addr,
		log:    logger.WithFields(log.Fields{log.FieldKeyModule: "server"}),
	}
	srv.echo.HideBanner = true
	srv.echo.HidePort = true
	srv.echo.Use(middleware.Recover())
	srv.echo.Use(middleware.CORS())

	srv.echo.GET("/status", srv.getStatus)
	srv.echo.GET("/holder/:address", srv.getHolder)
	srv.echo.GET("/holder/:address/bribes/:epoch", srv.getBribeSnapshot)
	srv.echo.GET("/pool/:address/allocation", srv.getPoolAllocation)
	srv.echo.GET("/snapshots/latest", srv.getLatestSnapshot)
	srv.echo.GET("/snapshots/:epoch", srv.getSnapshotAt)
	return srv
}

func (s *Server) Start() error {
	s.log.Infof("query server listening on %s", s.addr)
	err := s.echo.Start(s.addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func httpError(err error) error {
	switch errors.CodeOf(err) {
	case errors.NotFoundError:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.IllegalArgumentError, errors.InvalidTimingError, errors.WrongEpochError:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseAddress(c echo.Context) (*common.Address, error) {
	addr := new(common.Address)
	if err := addr.SetString(c.Param("address")); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid address")
	}
	return addr, nil
}

func parseEpoch(c echo.Context) (int64, error) {
	e, err := strconv.ParseInt(c.Param("epoch"), 10, 64)
	if err != nil || e < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid epoch")
	}
	return e, nil
}

func (s *Server) getStatus(c echo.Context) error {
	st, err := s.engine.Status()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) getHolder(c echo.Context) error {
	addr, err := parseAddress(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.engine.HolderStatus(addr))
}

func (s *Server) getBribeSnapshot(c echo.Context) error {
	addr, err := parseAddress(c)
	if err != nil {
		return err
	}
	epochN, err := parseEpoch(c)
	if err != nil {
		return err
	}
	snap := s.engine.BribeSnapshotOf(addr, epochN)
	if snap == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no snapshot")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"weight":       snap.Weight,
		"total_weight": snap.TotalWeight,
	})
}

func (s *Server) getPoolAllocation(c echo.Context) error {
	addr, err := parseAddress(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"pool":       addr,
		"allocation": s.engine.PoolAllocation(addr),
	})
}

func (s *Server) getLatestSnapshot(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no snapshot store")
	}
	snap, err := s.store.LatestSnapshot()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) getSnapshotAt(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no snapshot store")
	}
	epochN, err := parseEpoch(c)
	if err != nil {
		return err
	}
	snap, err := s.store.SnapshotAt(epochN)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}
