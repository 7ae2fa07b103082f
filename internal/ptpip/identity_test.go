package ptpip

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

func TestParseIdentity(t *testing.T) {
	stored := uuid.New()
	id, ok := ParseIdentity(stored.String(), "studio")
	assert.True(t, ok)
	assert.Equal(t, stored, id.GUID)
	assert.Equal(t, "studio", id.Name)

	id, ok = ParseIdentity("not-a-guid", "")
	assert.False(t, ok)
	assert.NotEqual(t, uuid.Nil, id.GUID)
	assert.True(t, strings.HasPrefix(id.Name, "ptpcam@"), "name = %q", id.Name)

	_, ok = ParseIdentity(uuid.Nil.String(), "x")
	assert.False(t, ok, "nil GUID is replaced")
}

func TestFriendlyName_Truncates(t *testing.T) {
	long := strings.Repeat("n", ptp.MaxStringLength+10)
	assert.Len(t, []rune(FriendlyName(long)), ptp.MaxStringLength)
}

func TestDefaultIdentity_Unique(t *testing.T) {
	assert.NotEqual(t, DefaultIdentity().GUID, DefaultIdentity().GUID)
}
