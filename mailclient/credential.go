package mailclient

import "strings"

// Credential carries one mailbox login. The secret is never logged and never
// written to disk by this package.
type Credential struct {
	Address string
	Secret  string
}

// NewCredential validates the local@domain shape of the address. No network
// is touched; whether the credential actually works is the session's
// business.
func NewCredential(address, secret string) (Credential, error) {
	addr := strings.TrimSpace(address)
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" || domain == "" {
		return Credential{}, &ArgumentError{Name: "address", Reason: "must look like local@domain"}
	}
	if strings.ContainsAny(local, " \t") || strings.ContainsAny(domain, "@ \t") {
		return Credential{}, &ArgumentError{Name: "address", Reason: "must look like local@domain"}
	}
	return Credential{Address: addr, Secret: secret}, nil
}

// Domain returns the lowercased domain part of the address.
func (c Credential) Domain() string {
	_, domain, _ := strings.Cut(c.Address, "@")
	return strings.ToLower(domain)
}
