package ptpip

import (
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// Identity is how this client introduces itself in the init handshake.
// Cameras remember paired clients by GUID, so a stable GUID avoids being
// asked to pair again.
type Identity struct {
	GUID uuid.UUID
	Name string
}

// DefaultIdentity returns a fresh GUID and a friendly name derived from the
// host name.
func DefaultIdentity() Identity {
	return Identity{GUID: uuid.New(), Name: FriendlyName("")}
}

// ParseIdentity builds an Identity from a stored GUID string. An empty or
// invalid GUID gets a fresh one; ok reports whether the stored one was used.
func ParseIdentity(guid, name string) (id Identity, ok bool) {
	id.Name = FriendlyName(name)
	parsed, err := uuid.Parse(guid)
	if err != nil || parsed == uuid.Nil {
		id.GUID = uuid.New()
		return id, false
	}
	id.GUID = parsed
	return id, true
}

// FriendlyName returns name, or "ptpcam@<host>" when name is empty. The
// result is cut to the length a PTP string can carry.
func FriendlyName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "localhost"
		}
		name = "ptpcam@" + strings.Split(host, ".")[0]
	}
	if r := []rune(name); len(r) > ptp.MaxStringLength {
		name = string(r[:ptp.MaxStringLength])
	}
	return name
}
