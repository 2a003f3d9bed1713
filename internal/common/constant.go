// Package common contains shared constants and sentinel errors used across
// the edge proxy and the registry client.
package common

const (
	// AuthorizationHeaderName carries the bearer access token on outbound requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the token in AuthorizationHeaderName.
	BearerPrefix = "Bearer "

	// OfflineHeaderName flags responses synthesized by the edge proxy when
	// neither the network nor a cache could answer.
	OfflineHeaderName = "X-Is-Offline"
)
