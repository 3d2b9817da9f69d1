// Package netutil picks the HTTP bind address for the agent, falling
// back through candidates when the preferred port is taken.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// SelectBindAddr picks an available bind address based on preferred and fallback list.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		ok, err := IsAddrAvailable(preferred)
		if err != nil {
			return "", err
		}
		if ok {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
		slog.Warn("preferred bind address in use, trying candidates", "preferred", preferred, "candidates", len(candidates))
	}

	for _, addr := range candidates {
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if ok {
			slog.Info("selected fallback bind address", "addr", addr)
			return addr, nil
		}
	}

	return "", errors.New("no available agent bind addresses")
}

// IsAddrAvailable returns true when an address can be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
