package accessmethod

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/wadahiro/apiaccess/internal/config"
)

// settingsNamespace scopes the name-based UUIDs derived for entries without an id.
var settingsNamespace = uuid.MustParse("6f1d8a52-3c1e-4f55-9a2b-0d3e6b7c9e41")

// FromSettings converts [[access-methods]] entries into methods.
//
// Entries without an id get a UUID derived from their contents, so reloading
// an unchanged file yields the same IDs and the iterator cursor stays put.
// A settings list without the built-in direct and bridges methods gets them
// appended, disabled, so they can be switched on later.
func FromSettings(entries []config.AccessMethodConfig) ([]Method, error) {
	if len(entries) == 0 {
		return []Method{Direct(), Bridges()}, nil
	}

	methods := make([]Method, 0, len(entries)+2)
	for i, e := range entries {
		m, err := fromEntry(e)
		if err != nil {
			return nil, fmt.Errorf("access method #%d: %w", i+1, err)
		}
		methods = append(methods, m)
	}

	if !hasID(methods, DirectID) {
		d := Direct()
		d.Enabled = false
		methods = append(methods, d)
	}
	if !hasID(methods, BridgesID) {
		b := Bridges()
		b.Enabled = false
		methods = append(methods, b)
	}
	return methods, nil
}

func fromEntry(e config.AccessMethodConfig) (Method, error) {
	kind, err := ParseKind(e.Type)
	if err != nil {
		return Method{}, err
	}

	m := Method{ID: e.ID, Name: e.Name, Enabled: e.IsEnabled()}
	switch kind {
	case KindDirect:
		m.Proxy = DirectProxy()
		if m.ID == "" {
			m.ID = DirectID
		}
	case KindBridges:
		m.Proxy = BridgesProxy()
		if m.ID == "" {
			m.ID = BridgesID
		}
	case KindShadowsocks:
		m.Proxy = ShadowsocksProxy(Shadowsocks{
			Server:   e.Server,
			Port:     e.Port,
			Password: e.Password,
			Cipher:   e.Cipher,
		})
	case KindSocks5:
		auth := NoAuthentication()
		if e.Username != "" || e.Password != "" {
			auth = UsernamePassword(e.Username, e.Password)
		}
		m.Proxy = Socks5Proxy(Socks5{Server: e.Server, Port: e.Port, Authentication: auth})
	}

	if m.ID == "" {
		m.ID = uuid.NewSHA1(settingsNamespace, []byte(e.Type+"|"+e.Name+"|"+e.Server+"|"+strconv.Itoa(e.Port))).String()
	}
	if m.Name == "" {
		m.Name = defaultName(m)
	}
	if _, err := uuid.Parse(m.ID); err != nil {
		return Method{}, fmt.Errorf("invalid id %q: %w", m.ID, err)
	}
	return m, m.Validate()
}

func defaultName(m Method) string {
	switch m.Kind() {
	case KindDirect:
		return "Direct"
	case KindBridges:
		return "Bridges"
	case KindShadowsocks:
		cfg, _ := m.Proxy.Shadowsocks()
		return "Shadowsocks " + cfg.Endpoint()
	default:
		cfg, _ := m.Proxy.Socks5()
		return "SOCKS5 " + cfg.Endpoint()
	}
}

func hasID(methods []Method, id string) bool {
	for _, m := range methods {
		if m.ID == id {
			return true
		}
	}
	return false
}
