package api

import (
	"netmand/internal/database"
)

// LoginRequest carries management API credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse returns the session token issued for valid credentials.
type LoginResponse struct {
	Token string `json:"token"`
}

// CreateProfileRequest describes a new connection profile. Field group
// validation (static fields for the static method, wireless fields for the
// wireless kind) happens in the profile store.
type CreateProfileRequest struct {
	Name        string   `json:"name" binding:"required"`
	Interface   string   `json:"interface"`
	Kind        string   `json:"kind" binding:"required"`
	Method      string   `json:"method"`
	IPAddress   string   `json:"ip_address"`
	Netmask     string   `json:"netmask"`
	Gateway     string   `json:"gateway"`
	DNSServers  []string `json:"dns_servers"`
	SSID        string   `json:"ssid"`
	Secret      string   `json:"secret"`
	Security    string   `json:"security"`
	AutoConnect *bool    `json:"auto_connect"`
	Priority    int      `json:"priority"`
}

// Profile converts the request into a store model. Auto-connect defaults to
// true when the field is omitted.
func (r *CreateProfileRequest) Profile() *database.ConnectionProfile {
	profile := &database.ConnectionProfile{
		Name:        r.Name,
		Interface:   r.Interface,
		Kind:        database.Kind(r.Kind),
		Method:      database.Method(r.Method),
		IPAddress:   r.IPAddress,
		Netmask:     r.Netmask,
		Gateway:     r.Gateway,
		SSID:        r.SSID,
		Secret:      r.Secret,
		Security:    r.Security,
		AutoConnect: true,
		Priority:    r.Priority,
	}
	profile.SetDNSList(r.DNSServers)
	if r.AutoConnect != nil {
		profile.AutoConnect = *r.AutoConnect
	}
	return profile
}

// ConnectResponse reports the outcome of a connect, disconnect, or
// auto-connect request. On failure Error carries the recorded detail.
type ConnectResponse struct {
	Connected bool   `json:"connected"`
	Interface string `json:"interface,omitempty"`
	Profile   string `json:"profile,omitempty"`
	Error     string `json:"error,omitempty"`
}

// QRCodeResponse carries a WiFi join QR code for a wireless profile as a
// base64-encoded PNG.
type QRCodeResponse struct {
	Profile string `json:"profile"`
	PNG     string `json:"png_base64"`
}

// ErrorResponse is the uniform error body for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
