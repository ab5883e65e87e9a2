// Package bridge loads and caches the parameters of dynamically provisioned
// Shadowsocks bridges.
package bridge

import (
	"fmt"
	"net"
	"strconv"
)

// Configuration holds the resolved parameters of one Shadowsocks bridge.
type Configuration struct {
	Address  string `json:"address"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	Cipher   string `json:"cipher"`
}

// Endpoint returns address:port.
func (c Configuration) Endpoint() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// String omits the password.
func (c Configuration) String() string {
	return fmt.Sprintf("%s (%s)", c.Endpoint(), c.Cipher)
}
