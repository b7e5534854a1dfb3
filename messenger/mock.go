package messenger

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/sure2web3/hotstuff2-sub000/types"
)

// MockMessenger is a gomock-style mock of Messenger, written in the shape
// mockgen would generate (the same style
// _examples/luxfi-consensus/networking/sender/sendermock uses for its
// generated sender mock), kept hand-written here since the module has no
// go:generate toolchain invocation in this exercise.
type MockMessenger struct {
	ctrl     *gomock.Controller
	recorder *MockMessengerRecorder
}

// MockMessengerRecorder records expected calls on MockMessenger.
type MockMessengerRecorder struct {
	mock *MockMessenger
}

// NewMockMessenger returns a new mock bound to ctrl.
func NewMockMessenger(ctrl *gomock.Controller) *MockMessenger {
	m := &MockMessenger{ctrl: ctrl}
	m.recorder = &MockMessengerRecorder{m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected calls.
func (m *MockMessenger) EXPECT() *MockMessengerRecorder {
	return m.recorder
}

func (m *MockMessenger) Broadcast(msg Envelope) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Broadcast", msg)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockMessengerRecorder) Broadcast(msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Broadcast", reflect.TypeOf((*MockMessenger)(nil).Broadcast), msg)
}

func (m *MockMessenger) Send(peer types.NodeID, msg Envelope) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Send", peer, msg)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockMessengerRecorder) Send(peer, msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*MockMessenger)(nil).Send), peer, msg)
}

func (m *MockMessenger) ConnectedPeers() []types.NodeID {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ConnectedPeers")
	peers, _ := ret[0].([]types.NodeID)
	return peers
}

func (mr *MockMessengerRecorder) ConnectedPeers() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ConnectedPeers", reflect.TypeOf((*MockMessenger)(nil).ConnectedPeers))
}

var _ Messenger = (*MockMessenger)(nil)
