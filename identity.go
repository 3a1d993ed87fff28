package litdrive

import "strings"

// Protocols is the fixed set of schemes a drive identifier may use.
var Protocols = []string{"lit://", "s3://", "gs://", "ipfs://"}

// Identity is the immutable identity of a Drive: a protocol from the
// supported set plus a single flat id. Two handles refer to the same
// logical drive exactly when their identities are equal.
type Identity struct {
	Protocol string
	ID       string
}

// ParseIdentity parses a raw identifier of the form "<protocol>://<id>".
// The id must be a single name without path separators.
func ParseIdentity(raw string) (Identity, error) {
	for _, protocol := range Protocols {
		if !strings.HasPrefix(raw, protocol) {
			continue
		}

		id := strings.TrimPrefix(raw, protocol)
		if id == "" || strings.Contains(id, "/") {
			return Identity{}, InvalidIdentifierError{Raw: raw, ID: id}
		}

		return Identity{Protocol: protocol, ID: id}, nil
	}

	return Identity{}, InvalidIdentifierError{Raw: raw, Protocols: Protocols}
}

// String returns the raw identifier form "<protocol>://<id>".
func (id Identity) String() string {
	return id.Protocol + id.ID
}
