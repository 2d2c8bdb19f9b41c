package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Call sends one request to the daemon listening on path
func Call(path string, req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", path, connTimeout)
	if err != nil {
		return Response{}, fmt.Errorf("connect to daemon: %w (is podscompanion running?)", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}
