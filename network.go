/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type networkAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type networkPayload struct {
	Addresses []networkAddress `json:"addresses"`
	Port      int              `json:"port"`
}

// listAddresses enumerates non-internal IPv4 interface addresses, the
// candidates for the join URL shown on the host screen.
func listAddresses() []networkAddress {
	out := []networkAddress{}

	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}

			out = append(out, networkAddress{
				Name:    iface.Name,
				Address: ip.String(),
			})
		}
	}

	return out
}

func serveNetwork(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)

		_ = json.NewEncoder(w).Encode(networkPayload{
			Addresses: listAddresses(),
			Port:      cfg.port,
		})
	}
}
