package discovery

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
)

// Announce registers the share as an _http._tcp mDNS service so a nearby
// client can find it without typing the URL. The instance name carries a
// short unique suffix so two shares on one LAN never collide. The caller
// shuts the server down once the client has connected.
func Announce(name string, port int) (*zeroconf.Server, error) {
	instance := fmt.Sprintf("%s-%s", name, uuid.New().String()[:8])
	server, err := zeroconf.Register(instance, "_http._tcp", "local.", port,
		[]string{"path=/" + name}, nil)
	if err != nil {
		return nil, fmt.Errorf("mDNS registration failed: %w", err)
	}
	return server, nil
}
