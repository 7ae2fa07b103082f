package ptpip

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

func TestCameraFromEntry(t *testing.T) {
	e := zeroconf.NewServiceEntry("ILCE-7M3", ServiceType, "local.")
	e.HostName = "ilce-7m3.local."
	e.AddrIPv4 = []net.IP{net.ParseIP("192.168.122.1")}
	e.Text = []string{"Model=ILCE-7M3", "txtvers=1", "flag"}

	info, ok := cameraFromEntry(e)
	assert.True(t, ok)
	assert.Equal(t, "ILCE-7M3", info.Name)
	assert.Equal(t, "192.168.122.1", info.Host)
	assert.Equal(t, ptp.DefaultPort, info.Port, "missing port falls back to the PTP-IP default")
	assert.Equal(t, "192.168.122.1:15740", info.Addr())
	assert.Equal(t, "ILCE-7M3", info.Text["model"])
	assert.Equal(t, "", info.Text["flag"])
}

func TestCameraFromEntry_HostNameFallback(t *testing.T) {
	e := zeroconf.NewServiceEntry("cam", ServiceType, "local.")
	e.HostName = "cam.local."
	e.Port = 15741

	info, ok := cameraFromEntry(e)
	assert.True(t, ok)
	assert.Equal(t, "cam.local", info.Host)
	assert.Equal(t, 15741, info.Port)

	_, ok = cameraFromEntry(zeroconf.NewServiceEntry("nohost", ServiceType, "local."))
	assert.False(t, ok)
	_, ok = cameraFromEntry(nil)
	assert.False(t, ok)
}
