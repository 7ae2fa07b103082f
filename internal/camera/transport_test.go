package camera

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// control is a control write seen by fakeTransport.
type control struct {
	code    ptp.PropertyCode
	value   ptp.Value
	channel ptp.ControlChannel
}

// fakeTransport serves property blocks from memory and applies settings
// written on channel A.
type fakeTransport struct {
	mu        sync.Mutex
	props     map[ptp.PropertyCode]ptp.PropertyBlock
	order     []ptp.PropertyCode
	controls  []control
	requests  []*ptp.CommandRequest
	data      map[uint32][]byte
	txid      uint32
	handler   func(*ptp.Packet)
	onControl func(control)
	failWrite error
}

func newFakeTransport(blocks ...ptp.PropertyBlock) *fakeTransport {
	f := &fakeTransport{
		props: make(map[ptp.PropertyCode]ptp.PropertyBlock),
		data:  make(map[uint32][]byte),
	}
	for _, b := range blocks {
		f.set(b)
	}
	return f
}

func (f *fakeTransport) set(b ptp.PropertyBlock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.props[b.Code]; !ok {
		f.order = append(f.order, b.Code)
	}
	f.props[b.Code] = b
}

func (f *fakeTransport) SendCommandRequest(_ context.Context, req *ptp.CommandRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if req.Code == ptp.OpGetAllDevicePropData {
		blocks := make([]ptp.PropertyBlock, 0, len(f.order))
		for _, code := range f.order {
			blocks = append(blocks, f.props[code])
		}
		f.data[req.TransactionID] = ptp.EncodePropertyArray(blocks)
	}
	return nil
}

func (f *fakeTransport) AwaitData(_ context.Context, txid uint32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[txid]
	if !ok {
		return nil, fmt.Errorf("transaction %d not pending", txid)
	}
	delete(f.data, txid)
	return data, nil
}

func (f *fakeTransport) GetDevicePropDesc(_ context.Context, code ptp.PropertyCode) (*ptp.DeviceProperty, error) {
	f.mu.Lock()
	b, ok := f.props[code]
	f.mu.Unlock()
	if !ok {
		return nil, &ptp.ResponseError{Op: ptp.OpGetDevicePropDesc, Code: ptp.RespDevicePropNotSupported}
	}
	p, _, err := ptp.DecodeDeviceProperty(ptp.BufferFrom(b.Bytes()), 0)
	return p, err
}

func (f *fakeTransport) SendSetControl(_ context.Context, code ptp.PropertyCode, value ptp.Value, ch ptp.ControlChannel) error {
	f.mu.Lock()
	if f.failWrite != nil {
		f.mu.Unlock()
		return f.failWrite
	}
	c := control{code: code, value: value, channel: ch}
	f.controls = append(f.controls, c)
	if b, ok := f.props[code]; ok && ch == ptp.ChannelA {
		b.Current = value
		f.props[code] = b
	}
	fn := f.onControl
	f.mu.Unlock()
	if fn != nil {
		fn(c)
	}
	return nil
}

func (f *fakeTransport) NextTransactionID() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txid++
	return f.txid
}

func (f *fakeTransport) SetEventHandler(fn func(*ptp.Packet)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = fn
}

// emit delivers an event packet the way the transport's reader does.
func (f *fakeTransport) emit(code uint16, args ...uint32) {
	p, err := ptp.ParsePacket(ptp.MarshalEvent(code, 0, args...))
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (f *fakeTransport) writes() []control {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]control(nil), f.controls...)
}

func (f *fakeTransport) requestCount(op uint16) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Code == op {
			n++
		}
	}
	return n
}

// mockTransport records calls for tests that assert on transport traffic.
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) SendCommandRequest(ctx context.Context, req *ptp.CommandRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockTransport) AwaitData(ctx context.Context, txid uint32) ([]byte, error) {
	args := m.Called(ctx, txid)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockTransport) GetDevicePropDesc(ctx context.Context, code ptp.PropertyCode) (*ptp.DeviceProperty, error) {
	args := m.Called(ctx, code)
	p, _ := args.Get(0).(*ptp.DeviceProperty)
	return p, args.Error(1)
}

func (m *mockTransport) SendSetControl(ctx context.Context, code ptp.PropertyCode, value ptp.Value, ch ptp.ControlChannel) error {
	return m.Called(ctx, code, value, ch).Error(0)
}

func (m *mockTransport) NextTransactionID() uint32 {
	return m.Called().Get(0).(uint32)
}

func (m *mockTransport) SetEventHandler(fn func(*ptp.Packet)) {
	m.Called(fn)
}

// Property blocks used across tests.

func enumBlock(code ptp.PropertyCode, t ptp.DataType, current uint64, values ...uint64) ptp.PropertyBlock {
	b := ptp.PropertyBlock{
		Code:     code,
		Type:     t,
		Writable: true,
		Current:  ptp.UintValue(t, current),
		Factory:  ptp.UintValue(t, current),
		Form:     ptp.FormEnum,
	}
	for _, v := range values {
		b.Values = append(b.Values, ptp.UintValue(t, v))
	}
	return b
}

func plainBlock(code ptp.PropertyCode, t ptp.DataType, current uint64) ptp.PropertyBlock {
	return ptp.PropertyBlock{
		Code:    code,
		Type:    t,
		Current: ptp.UintValue(t, current),
		Factory: ptp.UintValue(t, current),
	}
}

func focusModeBlock(mode FocusMode) ptp.PropertyBlock {
	return enumBlock(ptp.PropFocusMode, ptp.TypeUint16, uint64(mode),
		uint64(FocusManual), uint64(FocusAFSingle), uint64(FocusAFContinue))
}

func focusFoundBlock(v uint8) ptp.PropertyBlock {
	return plainBlock(ptp.PropFocusFound, ptp.TypeUint8, uint64(v))
}
