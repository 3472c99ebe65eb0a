// Package utils provides helper functionality for the connection manager,
// currently WiFi join QR code generation for sharing wireless profiles with
// mobile devices.
package utils

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"

	"netmand/internal/database"
)

// QRCodeGenerator produces WiFi join QR codes from wireless connection
// profiles using the standard WIFI: payload format understood by phone
// cameras.
type QRCodeGenerator struct {
	Size          int                  // QR code size in pixels
	RecoveryLevel qrcode.RecoveryLevel // Error correction level
}

// NewQRCodeGenerator creates a QR code generator with default settings:
// 256 pixels and medium error correction, a good balance between size and
// scanability. Returns a pointer to the newly created QRCodeGenerator.
func NewQRCodeGenerator() *QRCodeGenerator {
	return &QRCodeGenerator{
		Size:          256,
		RecoveryLevel: qrcode.Medium,
	}
}

// WiFiPayload builds the WIFI: join string for a wireless profile, escaping
// the characters the format reserves. Returns an error for profiles that
// are not wireless.
func WiFiPayload(profile *database.ConnectionProfile) (string, error) {
	if profile.Kind != database.KindWireless {
		return "", fmt.Errorf("profile %q is not a wireless profile", profile.Name)
	}

	security := "WPA"
	switch strings.ToLower(profile.Security) {
	case "none", "open":
		security = "nopass"
	case "wep":
		security = "WEP"
	}

	payload := fmt.Sprintf("WIFI:T:%s;S:%s;", security, escapeWiFiField(profile.SSID))
	if security != "nopass" {
		payload += fmt.Sprintf("P:%s;", escapeWiFiField(profile.Secret))
	}
	return payload + ";", nil
}

// GeneratePNG generates a WiFi join QR code for a wireless profile as PNG
// image data.
func (g *QRCodeGenerator) GeneratePNG(profile *database.ConnectionProfile) ([]byte, error) {
	payload, err := WiFiPayload(profile)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(payload, g.RecoveryLevel, g.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return png, nil
}

// GenerateBase64 generates a WiFi join QR code as a base64-encoded PNG,
// suitable for embedding in a JSON response or data URI.
func (g *QRCodeGenerator) GenerateBase64(profile *database.ConnectionProfile) (string, error) {
	png, err := g.GeneratePNG(profile)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// escapeWiFiField escapes the characters reserved by the WIFI: payload
// format: backslash, semicolon, comma, colon, and double quote.
func escapeWiFiField(value string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`;`, `\;`,
		`,`, `\,`,
		`:`, `\:`,
		`"`, `\"`,
	)
	return replacer.Replace(value)
}
