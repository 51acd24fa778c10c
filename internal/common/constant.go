package common

// ExpiresAtHeaderName carries the RFC 3339 expiry of a transfer on upload,
// download and metadata responses.
const ExpiresAtHeaderName = "X-Xfer-Expires-At"

// ServerName is sent in the Server header of every relay response.
const ServerName = "gophxfer"

// TransferPath is the relay route prefix for transfer resources.
const TransferPath = "/transfer"

// ConfigurationPath exposes the relay transfer limits to clients.
const ConfigurationPath = "/configuration"
