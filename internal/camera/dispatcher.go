package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// Options tunes dispatcher timing. Zero fields take defaults.
type Options struct {
	// FocusTimeout bounds the focus wait of a capture. Default 1s.
	FocusTimeout time.Duration
	// PollInterval is the focus status re-check interval. Default 100ms.
	PollInterval time.Duration
	// RequestTimeout bounds each transport call. Default 5s.
	RequestTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.FocusTimeout <= 0 {
		o.FocusTimeout = time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 5 * time.Second
	}
	return o
}

// Dispatcher maps operations onto property reads, property writes and the
// capture sequence. It is safe for concurrent use.
type Dispatcher struct {
	t     Transport
	opts  Options
	latch *eventLatch

	mu       sync.Mutex
	descs    map[ptp.PropertyCode]*ptp.DeviceProperty
	listener func(*ptp.Packet)
}

// NewDispatcher creates a Dispatcher over t and registers itself as t's
// event handler.
func NewDispatcher(t Transport, opts Options) *Dispatcher {
	d := &Dispatcher{
		t:     t,
		opts:  opts.withDefaults(),
		latch: newEventLatch(),
		descs: make(map[ptp.PropertyCode]*ptp.DeviceProperty),
	}
	t.SetEventHandler(d.handleEvent)
	return d
}

// SetEventListener registers fn to receive every unsolicited event after the
// dispatcher has recorded it. fn runs on the transport's reader goroutine.
func (d *Dispatcher) SetEventListener(fn func(*ptp.Packet)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = fn
}

func (d *Dispatcher) handleEvent(p *ptp.Packet) {
	d.latch.Set(p)
	d.mu.Lock()
	fn := d.listener
	d.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// Execute runs a typed command and waits for its result.
func Execute[S, R any](ctx context.Context, d *Dispatcher, cmd Command[S, R], payload S) (R, error) {
	var zero R
	v, err := d.Perform(ctx, Request{Op: cmd.Op, Payload: payload})
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result type %T", cmd.Op, v)
	}
	return r, nil
}

// Perform runs req and waits for its result. A payload whose type differs
// from the one the operation declares fails with ErrInvalidPayload before
// anything is sent.
func (d *Dispatcher) Perform(ctx context.Context, req Request) (any, error) {
	s, ok := registry[req.Op]
	if !ok {
		return nil, &NoSuchMethodError{Op: req.Op}
	}
	slog.Debug("perform", "op", req.Op)
	return s.run(ctx, d, req.Payload)
}

// PerformAsync runs req on a new goroutine and passes the outcome to done,
// which also runs on that goroutine. It never blocks the caller.
func (d *Dispatcher) PerformAsync(ctx context.Context, req Request, done func(any, error)) {
	go func() {
		v, err := d.Perform(ctx, req)
		if done != nil {
			done(v, err)
		}
	}()
}

// strategy executes one operation with an untyped payload.
type strategy interface {
	run(ctx context.Context, d *Dispatcher, payload any) (any, error)
}

// typed adapts a typed handler to strategy and owns the payload check.
type typed[S, R any] func(ctx context.Context, d *Dispatcher, payload S) (R, error)

func (f typed[S, R]) run(ctx context.Context, d *Dispatcher, payload any) (any, error) {
	s, ok := payload.(S)
	if !ok {
		var zero S
		if _, none := any(zero).(None); !none || payload != nil {
			return nil, fmt.Errorf("%w: got %T, want %T", ErrInvalidPayload, payload, zero)
		}
		s = zero
	}
	return f(ctx, d, s)
}

// noSuchMethod fails every call with NoSuchMethodError.
type noSuchMethod Op

func (n noSuchMethod) run(context.Context, *Dispatcher, any) (any, error) {
	return nil, &NoSuchMethodError{Op: Op(n)}
}

// unimplemented succeeds with an empty result.
type unimplemented Op

func (u unimplemented) run(context.Context, *Dispatcher, any) (any, error) {
	slog.Debug("operation not implemented, returning empty result", "op", Op(u))
	return None{}, nil
}

// binder registers the get, set and available strategies of a single
// property setting.
type binder interface {
	bind(reg map[Op]strategy, get, set, available Op)
}

type propertySetting[T Setting] struct {
	conv Converter[T]
}

func (p propertySetting[T]) bind(reg map[Op]strategy, get, set, available Op) {
	reg[get] = typed[None, T](func(ctx context.Context, d *Dispatcher, _ None) (T, error) {
		pair, err := getPair(ctx, d, p.conv)
		return pair.Current, err
	})
	reg[available] = typed[None, Pair[T]](func(ctx context.Context, d *Dispatcher, _ None) (Pair[T], error) {
		return getPair(ctx, d, p.conv)
	})
	if set != "" {
		reg[set] = typed[T, None](func(ctx context.Context, d *Dispatcher, v T) (None, error) {
			return None{}, d.writeSetting(ctx, v)
		})
	}
}

// propertyTable holds the operations that map one-to-one onto a single
// property. A row without a set operation has a hand-written setter.
var propertyTable = []struct {
	get, set, available Op
	setting             binder
}{
	{OpGetISO, OpSetISO, OpGetAvailableISO, propertySetting[ISO]{ISOConverter}},
	{OpGetShutterSpeed, OpSetShutterSpeed, OpGetAvailableShutterSpeed, propertySetting[ShutterSpeed]{ShutterSpeedConverter}},
	{OpGetFNumber, OpSetFNumber, OpGetAvailableFNumber, propertySetting[Aperture]{ApertureConverter}},
	{OpGetFocusMode, OpSetFocusMode, OpGetAvailableFocusMode, propertySetting[FocusMode]{FocusModeConverter}},
	{OpGetExposureMode, OpSetExposureMode, OpGetAvailableExposureMode, propertySetting[ExposureMode]{ExposureModeConverter}},
	{OpGetFlashMode, OpSetFlashMode, OpGetAvailableFlashMode, propertySetting[FlashMode]{FlashModeConverter}},
	{OpGetContShootingSpeed, OpSetContShootingSpeed, OpGetAvailableContSpeed, propertySetting[ContinuousSpeed]{ContinuousSpeedConverter}},
	{OpGetDriveMode, OpSetDriveMode, OpGetAvailableDriveMode, propertySetting[StillCaptureMode]{StillCaptureModeConverter}},
	{OpGetSelfTimer, "", OpGetAvailableSelfTimer, propertySetting[SelfTimer]{SelfTimerConverter}},
}

// registry maps every known operation to its strategy.
var registry map[Op]strategy

func init() {
	registry = buildRegistry()
}

func buildRegistry() map[Op]strategy {
	reg := make(map[Op]strategy)
	for _, row := range propertyTable {
		row.setting.bind(reg, row.get, row.set, row.available)
	}

	reg[OpSetSelfTimer] = typed[SelfTimer, None](setSelfTimer)
	reg[OpGetWhiteBalance] = typed[None, WhiteBalance](getWhiteBalance)
	reg[OpSetWhiteBalance] = typed[WhiteBalance, None](setWhiteBalance)
	reg[OpGetAvailableWhiteBalance] = typed[None, Pair[WhiteBalance]](getAvailableWhiteBalance)
	reg[OpGetStillSize] = typed[None, StillSize](getStillSize)
	reg[OpSetStillSize] = typed[StillSize, None](setStillSize)
	reg[OpGetAvailableStillSize] = typed[None, Pair[StillSize]](getAvailableStillSize)
	reg[OpGetFocusStatus] = typed[None, FocusStatus](getFocusStatus)
	reg[OpGetEvent] = typed[None, Event](getEvent)

	reg[OpTakePicture] = typed[None, CaptureResult](func(ctx context.Context, d *Dispatcher, _ None) (CaptureResult, error) {
		return d.capture(ctx)
	})
	reg[OpHalfPressShutter] = button(ptp.PropHalfPress, ptp.ButtonDown)
	reg[OpCancelHalfPressShutter] = button(ptp.PropHalfPress, ptp.ButtonUp)
	reg[OpStartContShooting] = button(ptp.PropFullPress, ptp.ButtonDown)
	reg[OpStopContShooting] = button(ptp.PropFullPress, ptp.ButtonUp)
	reg[OpStartBulbShooting] = button(ptp.PropFullPress, ptp.ButtonDown)
	reg[OpStopBulbShooting] = button(ptp.PropFullPress, ptp.ButtonUp)

	for _, op := range []Op{
		OpGetApplicationInfo, OpGetVersions, OpGetMethodTypes, OpStartRecMode,
		OpStopRecMode, OpGetContentCount, OpSetCameraFunction, OpGetCameraFunction,
	} {
		reg[op] = noSuchMethod(op)
	}
	for _, op := range []Op{
		OpStartZooming, OpStopZooming, OpSetTouchAFPosition,
		OpCancelTouchAFPosition, OpStartLiveView, OpStopLiveView,
	} {
		reg[op] = unimplemented(op)
	}
	return reg
}

func button(code ptp.PropertyCode, state uint16) strategy {
	return typed[None, None](func(ctx context.Context, d *Dispatcher, _ None) (None, error) {
		return None{}, d.pressButton(ctx, code, state)
	})
}

// --------------------------------------------------------------------------
// Transport helpers
// --------------------------------------------------------------------------

func (d *Dispatcher) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.opts.RequestTimeout)
}

// descriptor fetches a property descriptor and caches it for write
// validation.
func (d *Dispatcher) descriptor(ctx context.Context, code ptp.PropertyCode) (*ptp.DeviceProperty, error) {
	ctx, cancel := d.requestContext(ctx)
	defer cancel()
	p, err := d.t.GetDevicePropDesc(ctx, code)
	if err != nil {
		return nil, propertyError(code, err)
	}
	d.remember(p)
	return p, nil
}

func (d *Dispatcher) remember(props ...*ptp.DeviceProperty) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range props {
		d.descs[p.Code()] = p
	}
}

func (d *Dispatcher) cached(code ptp.PropertyCode) *ptp.DeviceProperty {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.descs[code]
}

// writeSetting validates v against the last descriptor seen for its
// property and writes it on the settings channel.
func (d *Dispatcher) writeSetting(ctx context.Context, v Setting) error {
	code, wire := v.PropertyCode(), v.Wire()
	if p := d.cached(code); p != nil {
		if !p.Writable() {
			return propertyError(code, ErrNotWritable)
		}
		if !p.Accepts(wire) {
			return propertyError(code, fmt.Errorf("%w: %v", ErrValueNotAvailable, v))
		}
	}
	ctx, cancel := d.requestContext(ctx)
	defer cancel()
	slog.Debug("set property", "code", fmt.Sprintf("0x%04X", uint16(code)), "value", v)
	if err := d.t.SendSetControl(ctx, code, wire, ptp.ChannelA); err != nil {
		return propertyError(code, err)
	}
	return nil
}

func (d *Dispatcher) pressButton(ctx context.Context, code ptp.PropertyCode, state uint16) error {
	ctx, cancel := d.requestContext(ctx)
	defer cancel()
	slog.Debug("button", "code", fmt.Sprintf("0x%04X", uint16(code)), "state", state)
	if err := d.t.SendSetControl(ctx, code, ptp.UintValue(ptp.TypeUint16, uint64(state)), ptp.ChannelB); err != nil {
		return propertyError(code, err)
	}
	return nil
}

func getPair[T any](ctx context.Context, d *Dispatcher, c Converter[T]) (Pair[T], error) {
	p, err := d.descriptor(ctx, c.Code)
	if err != nil {
		return Pair[T]{}, err
	}
	pair, ok := c.Decode(p)
	if !ok {
		return Pair[T]{}, propertyError(c.Code, fmt.Errorf("%w: %v", ErrNoValue, p.Current()))
	}
	return pair, nil
}

// --------------------------------------------------------------------------
// Composite and special strategies
// --------------------------------------------------------------------------

// setSelfTimer resolves the delay against the drive modes the camera
// advertises. Several advertised variants with the same delay are not
// resolved silently; the caller picks one and sets it as a drive mode.
func setSelfTimer(ctx context.Context, d *Dispatcher, v SelfTimer) (None, error) {
	if v == SelfTimerOff {
		return None{}, d.writeSetting(ctx, DriveSingle)
	}
	modes, err := getPair(ctx, d, StillCaptureModeConverter)
	if err != nil {
		return None{}, err
	}
	candidates := StillCaptureModesFor(v, modes.Available)
	switch len(candidates) {
	case 0:
		return None{}, propertyError(ptp.PropStillCaptureMode, fmt.Errorf("%w: self-timer %s", ErrValueNotAvailable, v))
	case 1:
		return None{}, d.writeSetting(ctx, candidates[0])
	default:
		return None{}, &AmbiguousValueError{Value: "self-timer " + v.String(), Candidates: candidates}
	}
}

func getWhiteBalance(ctx context.Context, d *Dispatcher, _ None) (WhiteBalance, error) {
	mode, err := getPair(ctx, d, WhiteBalanceModeConverter)
	if err != nil {
		return WhiteBalance{}, err
	}
	wb := WhiteBalance{Mode: mode.Current}
	temp, err := getPair(ctx, d, ColorTemperatureConverter)
	if err != nil {
		slog.Debug("color temperature unavailable", "err", err)
		return wb, nil
	}
	wb.Temperature = &temp.Current
	return wb, nil
}

func getAvailableWhiteBalance(ctx context.Context, d *Dispatcher, _ None) (Pair[WhiteBalance], error) {
	current, err := getWhiteBalance(ctx, d, None{})
	if err != nil {
		return Pair[WhiteBalance]{}, err
	}
	modes, err := getPair(ctx, d, WhiteBalanceModeConverter)
	if err != nil {
		return Pair[WhiteBalance]{}, err
	}
	pair := Pair[WhiteBalance]{Current: current}
	for _, m := range modes.Available {
		pair.Available = append(pair.Available, WhiteBalance{Mode: m})
	}
	return pair, nil
}

// setWhiteBalance writes the mode, then the temperature when one is given
// and the mode uses it.
func setWhiteBalance(ctx context.Context, d *Dispatcher, v WhiteBalance) (None, error) {
	if err := d.writeSetting(ctx, v.Mode); err != nil {
		return None{}, err
	}
	if v.Temperature == nil || v.Mode != WBColorTemp {
		return None{}, nil
	}
	return None{}, d.writeSetting(ctx, *v.Temperature)
}

func getStillSize(ctx context.Context, d *Dispatcher, _ None) (StillSize, error) {
	size, err := getPair(ctx, d, ImageSizeConverter)
	if err != nil {
		return StillSize{}, err
	}
	v := StillSize{Size: size.Current}
	aspect, err := getPair(ctx, d, AspectRatioConverter)
	if err != nil {
		slog.Debug("aspect ratio unavailable", "err", err)
		return v, nil
	}
	v.Aspect = &aspect.Current
	return v, nil
}

func getAvailableStillSize(ctx context.Context, d *Dispatcher, _ None) (Pair[StillSize], error) {
	current, err := getStillSize(ctx, d, None{})
	if err != nil {
		return Pair[StillSize]{}, err
	}
	sizes, err := getPair(ctx, d, ImageSizeConverter)
	if err != nil {
		return Pair[StillSize]{}, err
	}
	pair := Pair[StillSize]{Current: current}
	for _, s := range sizes.Available {
		pair.Available = append(pair.Available, StillSize{Size: s})
	}
	return pair, nil
}

// setStillSize writes the aspect ratio first when one is given, since the
// sizes a camera accepts depend on it, then the size.
func setStillSize(ctx context.Context, d *Dispatcher, v StillSize) (None, error) {
	if v.Aspect != nil {
		if err := d.writeSetting(ctx, *v.Aspect); err != nil {
			return None{}, err
		}
	}
	return None{}, d.writeSetting(ctx, v.Size)
}

func getFocusStatus(ctx context.Context, d *Dispatcher, _ None) (FocusStatus, error) {
	p, err := d.descriptor(ctx, ptp.PropFocusFound)
	if err != nil {
		return 0, err
	}
	v, ok := FocusStatusConverter.FromWire(p.Current())
	if !ok {
		return 0, propertyError(ptp.PropFocusFound, fmt.Errorf("%w: %v", ErrNoValue, p.Current()))
	}
	return v, nil
}

// getEvent reads every property in one transaction and assembles an Event.
func getEvent(ctx context.Context, d *Dispatcher, _ None) (Event, error) {
	ctx, cancel := d.requestContext(ctx)
	defer cancel()
	txid := d.t.NextTransactionID()
	if err := d.t.SendCommandRequest(ctx, ptp.NewCommandRequest(ptp.OpGetAllDevicePropData, txid)); err != nil {
		return Event{}, fmt.Errorf("get all properties: %w", err)
	}
	data, err := d.t.AwaitData(ctx, txid)
	if err != nil {
		return Event{}, fmt.Errorf("get all properties: %w", err)
	}
	props := ptp.DecodeDevicePropertyArray(ptp.BufferFrom(data), 0)
	d.remember(props...)
	return NewEvent(props), nil
}
