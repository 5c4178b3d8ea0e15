// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/co"
)

// StartServer serves handler on addr and returns the bound URL with a closer.
func StartServer(addr string, handler http.HandlerFunc) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen API addr [%v]", addr)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String(), func() {
		srv.Close()
		goes.Wait()
	}, nil
}
