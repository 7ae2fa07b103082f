package camera

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzyy94/ptpcam/internal/ptp"
	"github.com/mzyy94/ptpcam/internal/ptpip"
	"github.com/mzyy94/ptpcam/internal/ptpip/ptpiptest"
)

func connectFake(t *testing.T, opts Options, blocks ...ptp.PropertyBlock) (*ptpiptest.Camera, *Camera) {
	t.Helper()
	fake, err := ptpiptest.NewCamera("ILCE-7M3")
	require.NoError(t, err)
	t.Cleanup(fake.Close)
	for _, b := range blocks {
		fake.SetProperty(b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cam, err := Connect(ctx, ptpip.Options{
		Host:              fake.Host(),
		Port:              fake.Port(),
		HeartbeatInterval: -1,
	}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { cam.Close() })

	select {
	case <-fake.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("fake camera not ready")
	}
	return fake, cam
}

func TestCamera_GetAndSet(t *testing.T) {
	fake, cam := connectFake(t, Options{}, isoBlock(400))
	ctx := context.Background()
	assert.Equal(t, "ILCE-7M3", cam.Name())

	v, err := Execute(ctx, cam.Dispatcher, GetISO, None{})
	require.NoError(t, err)
	assert.Equal(t, ISO{Value: 400}, v)

	_, err = Execute(ctx, cam.Dispatcher, SetISO, ISO{Value: 800})
	require.NoError(t, err)

	b, ok := fake.Property(ptp.PropISO)
	require.True(t, ok)
	assert.Equal(t, uint64(800), b.Current.Uint())

	ctl := fake.Controls()
	require.Len(t, ctl, 1)
	assert.Equal(t, ptp.ChannelA, ctl[0].Channel)
	assert.Equal(t, uint32(800), binary.LittleEndian.Uint32(ctl[0].Payload))
}

func TestCamera_Snapshot(t *testing.T) {
	fake, cam := connectFake(t, Options{}, isoBlock(400), focusModeBlock(FocusManual))
	ctx := context.Background()

	ev, err := cam.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, ISO{Value: 400}, ev.ISO.Current)

	fake.SetProperty(focusModeBlock(FocusAFSingle))
	ev, err = cam.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, FocusAFSingle, ev.FocusMode.Current)
	assert.NotNil(t, ev.ISO)
}

func TestCamera_Capture(t *testing.T) {
	fake, cam := connectFake(t, Options{FocusTimeout: 5 * time.Second, PollInterval: time.Hour},
		focusModeBlock(FocusAFSingle), focusFoundBlock(1))
	fake.OnControl(func(c ptpiptest.Control) {
		if c.Code == ptp.PropFullPress && binary.LittleEndian.Uint16(c.Payload) == ptp.ButtonDown {
			go fake.SendEvent(ptp.EventDevicePropChanged, uint32(ptp.PropFocusFound))
		}
	})

	res, err := Execute(context.Background(), cam.Dispatcher, TakePicture, None{})
	require.NoError(t, err)
	assert.Equal(t, StateFocusConfirmed, res.Focus)

	ctl := fake.Controls()
	require.Len(t, ctl, 2)
	for i, state := range []uint16{ptp.ButtonDown, ptp.ButtonUp} {
		assert.Equal(t, ptp.ChannelB, ctl[i].Channel)
		assert.Equal(t, ptp.PropFullPress, ctl[i].Code)
		assert.Equal(t, state, binary.LittleEndian.Uint16(ctl[i].Payload))
	}
}

func TestCamera_Watch(t *testing.T) {
	fake, cam := connectFake(t, Options{}, isoBlock(100))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seen := make(chan ISO, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- cam.Watch(ctx, func(ev Event) {
			if ev.ISO != nil {
				seen <- ev.ISO.Current
			}
		})
	}()

	assert.Equal(t, ISO{Value: 100}, <-seen)
	fake.SetProperty(isoBlock(200))
	require.NoError(t, fake.SendEvent(ptp.EventDevicePropChanged, uint32(ptp.PropISO)))
	assert.Equal(t, ISO{Value: 200}, <-seen)

	cancel()
	assert.NoError(t, <-errc)
}

func TestCamera_ConnectRefused(t *testing.T) {
	fake, err := ptpiptest.NewCamera("gone")
	require.NoError(t, err)
	host, port := fake.Host(), fake.Port()
	fake.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = Connect(ctx, ptpip.Options{Host: host, Port: port, HeartbeatInterval: -1}, Options{})
	assert.ErrorContains(t, err, "connect")
}
